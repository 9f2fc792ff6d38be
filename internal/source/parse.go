package source

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/closure-tracker/internal/model"
)

const (
	selComment = ".wpd_comment_level-1"
	selDate    = ".wpd-comment-timestamp, .wpd-comment-date"
	selText    = ".wpd-comment-text"
	selLink    = ".wpd-comment-link span[data-wpd-clipboard]"

	permalinkMarker = "#comment-"
)

// ParseComments extracts top-level comments from a comment-list fragment in
// document order. Replies are ignored. Blank input yields no comments.
func ParseComments(html string, loc *time.Location) ([]model.Comment, error) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "source: parse comment html")
	}

	var (
		comments []model.Comment
		parseErr error
	)
	doc.Find(selComment).EachWithBreak(func(i int, s *goquery.Selection) bool {
		c, err := parseComment(s, loc)
		if err != nil {
			parseErr = eris.Wrapf(err, "source: comment %d", i)
			return false
		}
		comments = append(comments, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return comments, nil
}

func parseComment(s *goquery.Selection, loc *time.Location) (model.Comment, error) {
	link, _ := s.Find(selLink).First().Attr("data-wpd-clipboard")
	id := commentID(link)
	if id == "" {
		return model.Comment{}, eris.Wrapf(ErrMissingID, "source: permalink %q", link)
	}

	rawDate := strings.TrimSpace(s.Find(selDate).First().Text())
	ts, err := ParseTimestamp(rawDate, loc)
	if err != nil {
		return model.Comment{}, eris.Wrapf(err, "source: comment %s", id)
	}

	return model.Comment{
		ID:        id,
		Timestamp: model.UnixTime(ts),
		Text:      strings.TrimSpace(s.Find(selText).First().Text()),
	}, nil
}

// commentID returns the fragment after "#comment-" in a permalink.
func commentID(permalink string) string {
	_, id, ok := strings.Cut(permalink, permalinkMarker)
	if !ok {
		return ""
	}
	return strings.TrimSpace(id)
}
