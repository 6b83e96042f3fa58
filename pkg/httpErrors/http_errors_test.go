package httpErrors

import (
	"net/http"
	"testing"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/pkg/errors"
)

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", errors.Wrap(exports.ErrInvalidInput, "exportsUC.Intake"), http.StatusBadRequest},
		{"input error", &exports.InputError{Msg: "exportsUC.Intake"}, http.StatusBadRequest},
		{"not found", errors.Wrap(exports.ErrNotFound, "exportsUC.GetStatus"), http.StatusNotFound},
		{"not ready", errors.Wrap(exports.ErrNotReady, "exportsUC.OpenArtifact"), http.StatusConflict},
		{"rest error", NewBadRequestError("bad"), http.StatusBadRequest},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseErrors(tt.err).Status(); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestParseErrorsHidesInternalText(t *testing.T) {
	if got := ParseErrors(errors.New("/var/tmp/secret.mp4: permission denied")).Error(); got != InternalServerError {
		t.Errorf("error = %q", got)
	}
}

func TestParseErrorsCarriesInputCauses(t *testing.T) {
	causes := map[string]string{"quality": "oneof"}
	restErr := ParseErrors(errors.Wrap(&exports.InputError{Msg: "exportsUC.Intake", Causes: causes}, "handler"))
	if restErr.Status() != http.StatusBadRequest || restErr.Error() != BadRequest {
		t.Fatalf("rest error = %+v", restErr)
	}
	got, ok := restErr.ErrCauses.(map[string]string)
	if !ok || got["quality"] != "oneof" || len(got) != 1 {
		t.Errorf("causes = %#v", restErr.ErrCauses)
	}
}
