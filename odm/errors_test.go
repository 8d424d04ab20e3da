package odm

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPersistenceFailedError(t *testing.T) {
	Convey("PersistenceFailedError", t, func() {
		e := NewEntity(map[string]any{"email": "x"})
		e.SetError("email", "invalid", "taken")
		err := &PersistenceFailedError{Entity: e, Operations: []string{"save"}}
		So(err.Error(), ShouldEqual, "Entity save failure. Found the following errors (email: invalid, taken).")
		So(errors.Unwrap(err), ShouldBeNil)

		cause := errors.New("boom")
		err = &PersistenceFailedError{Entity: NewEntity(nil), Operations: []string{"delete"}, Cause: cause}
		So(err.Error(), ShouldEqual, "Entity delete failure. boom")
		So(errors.Is(err, cause), ShouldBeTrue)
	})
}
