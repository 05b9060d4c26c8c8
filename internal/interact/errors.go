package interact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	ErrVisibilityTimeout = errors.New("element not visible")
	ErrInteractionFailed = errors.New("interaction failed")
	ErrTextMismatch      = errors.New("text mismatch")
)

// InteractionFailedError is returned once every click attempt is exhausted.
type InteractionFailedError struct {
	Target   string
	Attempts int
	Last     error
}

func (e *InteractionFailedError) Error() string {
	return fmt.Sprintf("click %s failed after %d attempts: %v", e.Target, e.Attempts, e.Last)
}

func (e *InteractionFailedError) Is(target error) bool {
	return target == ErrInteractionFailed
}

func (e *InteractionFailedError) Unwrap() error {
	return e.Last
}

// textDiff renders a character diff of want against got, marking deletions
// as [-x-] and insertions as {+x+}.
func textDiff(want, got string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(want, got, false))
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
