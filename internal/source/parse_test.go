package source

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/closure-tracker/internal/model"
)

func commentHTML(id, date, text string) string {
	return fmt.Sprintf(`
<div class="wpd-comment wpd_comment_level-1">
  <div class="wpd-comment-header">
    <div class="wpd-comment-date">%s</div>
    <div class="wpd-comment-link"><span data-wpd-clipboard="https://www.doctorofcredit.com/post/#comment-%s"><i class="fas fa-link"></i></span></div>
  </div>
  <div class="wpd-comment-text"><p>%s</p></div>
  <div class="wpd-comment wpd_comment_level-2">
    <div class="wpd-comment-date">January 1, 2020 0:00</div>
    <div class="wpd-comment-text">a reply</div>
  </div>
</div>`, date, id, text)
}

func TestParseComments(t *testing.T) {
	t.Parallel()
	loc := eastern(t)

	html := commentHTML("11", "December 30, 2022 17:30", "Closed Chase by phone &amp; it took 5 min") +
		commentHTML("10", "December 30, 2022 17:27", "  Citi chat refused <b>twice</b>  ")

	got, err := ParseComments(html, loc)
	require.NoError(t, err)
	assert.Equal(t, []model.Comment{
		{ID: "11", Timestamp: 1672439400, Text: "Closed Chase by phone & it took 5 min"},
		{ID: "10", Timestamp: 1672439220, Text: "Citi chat refused twice"},
	}, got)
}

func TestParseComments_TimestampClass(t *testing.T) {
	t.Parallel()

	html := `<div class="wpd_comment_level-1">
  <span class="wpd-comment-timestamp">March 1, 2024 12:00</span>
  <div class="wpd-comment-link"><span data-wpd-clipboard="/x#comment-77"></span></div>
  <div class="wpd-comment-text">ok</div>
</div>`
	got, err := ParseComments(html, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "77", got[0].ID)
	assert.Equal(t, model.UnixTime(1709294400), got[0].Timestamp)
}

func TestParseComments_Blank(t *testing.T) {
	t.Parallel()

	for _, html := range []string{"", "   \n\t"} {
		got, err := ParseComments(html, time.UTC)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestParseComments_MissingID(t *testing.T) {
	t.Parallel()

	html := `<div class="wpd_comment_level-1">
  <div class="wpd-comment-date">March 1, 2024 12:00</div>
  <div class="wpd-comment-link"><span data-wpd-clipboard="https://example.com/post/"></span></div>
  <div class="wpd-comment-text">no anchor</div>
</div>`
	_, err := ParseComments(html, time.UTC)
	assert.ErrorIs(t, err, ErrMissingID)

	noLink := `<div class="wpd_comment_level-1"><div class="wpd-comment-date">March 1, 2024 12:00</div></div>`
	_, err = ParseComments(noLink, time.UTC)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestParseComments_BadDate(t *testing.T) {
	t.Parallel()

	_, err := ParseComments(commentHTML("5", "3 hours ago", "x"), time.UTC)
	assert.ErrorIs(t, err, ErrBadTimestamp)
}

func TestCommentID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "123", commentID("https://x/#comment-123"))
	assert.Equal(t, "", commentID("https://x/#reply-123"))
	assert.Equal(t, "", commentID(""))
}
