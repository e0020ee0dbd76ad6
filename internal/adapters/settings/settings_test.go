package settings_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/settings"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	defaults := settings.Timers{Round: 15 * time.Second, Final: 30 * time.Second}

	Convey("Given no settings file", t, func() {
		path := filepath.Join(t.TempDir(), "data", "settings.yaml")
		s, err := settings.Open(path, defaults)
		So(err, ShouldBeNil)

		Convey("The defaults apply", func() {
			So(s.Timers(), ShouldResemble, defaults)
		})

		Convey("Changes are persisted and reloaded", func() {
			So(s.SetRound(45*time.Second), ShouldBeNil)
			So(s.SetFinal(20*time.Second), ShouldBeNil)

			again, err := settings.Open(path, defaults)
			So(err, ShouldBeNil)
			So(again.Timers(), ShouldResemble, settings.Timers{Round: 45 * time.Second, Final: 20 * time.Second})
		})
	})

	Convey("Given a partial settings file", t, func() {
		path := filepath.Join(t.TempDir(), "settings.yaml")
		So(os.WriteFile(path, []byte("round_seconds: 60\n"), 0o600), ShouldBeNil)

		Convey("Missing values keep their defaults", func() {
			s, err := settings.Open(path, defaults)
			So(err, ShouldBeNil)
			So(s.Timers().Round, ShouldEqual, 60*time.Second)
			So(s.Timers().Final, ShouldEqual, 30*time.Second)
		})
	})

	Convey("Given a corrupt settings file", t, func() {
		path := filepath.Join(t.TempDir(), "settings.yaml")
		So(os.WriteFile(path, []byte("round_seconds: [\n"), 0o600), ShouldBeNil)

		Convey("Open fails", func() {
			_, err := settings.Open(path, defaults)
			So(err, ShouldNotBeNil)
		})
	})
}
