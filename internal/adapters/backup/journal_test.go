package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/falcongrasp/internal/domain/model"
)

func submission(id string, scores ...int) model.ScoreSubmission {
	sub := model.ScoreSubmission{GameResultID: id}
	for i, s := range scores {
		sub.IndividualScore = append(sub.IndividualScore, model.IndividualScore{
			UserID: "u" + string(rune('1'+i)),
			NodeID: i + 1,
			Score:  s,
		})
	}
	return sub
}

func TestJournal(t *testing.T) {
	Convey("Given an empty journal", t, func() {
		dir := t.TempDir()
		j, err := Open(dir)
		So(err, ShouldBeNil)

		clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		j.now = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}

		Convey("Nothing is pending", func() {
			recs, err := j.Pending()
			So(err, ShouldBeNil)
			So(recs, ShouldBeEmpty)
		})

		Convey("A saved submission is pending until marked", func() {
			rec, err := j.Save("Hawks", 7, submission("gr-1", 3, 4))
			So(err, ShouldBeNil)
			So(rec.ID, ShouldNotBeEmpty)
			So(rec.Pending(), ShouldBeTrue)

			recs, err := j.Pending()
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 1)
			So(recs[0].Submission.IndividualScore, ShouldHaveLength, 2)
			So(recs[0].TeamName, ShouldEqual, "Hawks")

			So(j.MarkSubmitted("gr-1"), ShouldBeNil)
			recs, err = j.Pending()
			So(err, ShouldBeNil)
			So(recs, ShouldBeEmpty)

			got, err := j.Get("gr-1")
			So(err, ShouldBeNil)
			So(got.SubmittedAt, ShouldNotBeNil)

			Convey("Marking twice keeps the first timestamp", func() {
				first := *got.SubmittedAt
				So(j.MarkSubmitted("gr-1"), ShouldBeNil)
				again, _ := j.Get("gr-1")
				So(again.SubmittedAt.Equal(first), ShouldBeTrue)
			})
		})

		Convey("Pending records come back oldest first", func() {
			_, _ = j.Save("", 1, submission("gr-b", 1))
			_, _ = j.Save("", 2, submission("gr-a", 2))
			recs, err := j.Pending()
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].GameResultID, ShouldEqual, "gr-b")
			So(recs[1].GameResultID, ShouldEqual, "gr-a")
		})

		Convey("Unknown ids are reported", func() {
			So(errors.Is(j.MarkSubmitted("nope"), ErrNotFound), ShouldBeTrue)
		})

		Convey("A submission without id is refused", func() {
			_, err := j.Save("", 0, model.ScoreSubmission{})
			So(err, ShouldNotBeNil)
		})

		Convey("Ids cannot escape the directory", func() {
			_, err := j.Save("", 0, submission("../../etc/passwd", 1))
			So(err, ShouldBeNil)
			entries, _ := os.ReadDir(dir)
			So(entries, ShouldHaveLength, 1)
			So(filepath.Ext(entries[0].Name()), ShouldEqual, ".json")
		})

		Convey("A corrupt file does not hide good records", func() {
			_, _ = j.Save("", 5, submission("gr-ok", 5))
			So(os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600), ShouldBeNil)

			recs, err := j.Pending()
			So(err, ShouldNotBeNil)
			So(recs, ShouldHaveLength, 1)
			So(recs[0].GameResultID, ShouldEqual, "gr-ok")
		})
	})
}
