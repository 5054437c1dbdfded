package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeText(t *testing.T) {
	assert := assert.New(t)

	title := newTextResult(false, 0.5, []string{"Excessive capitalization"}, "Content passed moderation")
	desc := newTextResult(true, 0.9, []string{"Suspicious content detected"}, "Content flagged for review")

	m := MergeText(title, desc)
	assert.True(m.Flagged)
	assert.Equal(0.9, m.Confidence)
	assert.Equal([]string{"Excessive capitalization", "Suspicious content detected"}, m.Issues)
	assert.Equal(2, m.TotalIssues)
	assert.Equal(ActionReject, m.Recommendation)
	assert.Equal("Content requires review", m.Message)
	assert.Equal(title.Issues, m.Title.Issues)
	assert.Equal(desc.Issues, m.Description.Issues)

	// 交换参数顺序，判定结果不变
	swapped := MergeText(desc, title)
	assert.Equal(m.Flagged, swapped.Flagged)
	assert.Equal(m.Confidence, swapped.Confidence)
	assert.Equal(m.Recommendation, swapped.Recommendation)
	assert.Equal(m.TotalIssues, swapped.TotalIssues)
	assert.ElementsMatch(m.Issues, swapped.Issues)

	clean := newTextResult(false, 0.0, nil, "Content passed moderation")
	m = MergeText(clean, clean)
	assert.False(m.Flagged)
	assert.Equal(ActionApprove, m.Recommendation)
	assert.Empty(m.Issues)
}

func TestRoommateListingApproved(t *testing.T) {
	assert := assert.New(t)
	eng := testTextEngine()

	title := eng.Evaluate("", CategoryRoommate, nil)
	desc := eng.Evaluate("Looking for a quiet roommate near campus, rent $600/month", CategoryRoommate, nil)
	assert.False(title.Flagged)
	assert.False(desc.Flagged)

	m := MergeText(title, desc)
	assert.False(m.Flagged)
	assert.Equal(0.0, m.Confidence)

	d := Decide(m, nil)
	assert.Equal(ActionApprove, d.Action)
	assert.Equal("Content passed all moderation checks", d.Reason)
	assert.Empty(d.Issues)
}

func TestDecide(t *testing.T) {
	assert := assert.New(t)

	text := MergeText(
		newTextResult(true, 0.7, []string{"Potential spam content detected"}, "Content flagged for review"),
		newTextResult(false, 0.0, nil, "Empty or invalid text"),
	)
	img := aggregateImages([]ImageAnalysis{{ImageID: "image_0", Flagged: true, Confidence: 0.3, Issues: []string{"Image image_0 has suspicious aspect ratio"}}})

	d := Decide(text, &img)
	assert.Equal(ActionReject, d.Action)
	assert.Equal("Text content flagged for review; Images flagged for review", d.Reason)
	assert.Equal(0.7, d.Confidence)
	assert.Equal([]string{"Potential spam content detected", "Image image_0 has suspicious aspect ratio"}, d.Issues)

	clean := MergeText(newTextResult(false, 0.4, []string{"Excessive punctuation"}, "Content passed moderation"), newTextResult(false, 0, nil, ""))
	d = Decide(clean, &img)
	assert.Equal(ActionReject, d.Action)
	assert.Equal("Images flagged for review", d.Reason)
	assert.Equal(0.4, d.Confidence)

	noImg := aggregateImages(nil)
	d = Decide(clean, &noImg)
	assert.Equal(ActionApprove, d.Action)
	assert.Equal(0.4, d.Confidence)
}

func TestDecideRejectIffFlagged(t *testing.T) {
	assert := assert.New(t)

	flagged := MergeText(newTextResult(true, 0.8, []string{"x"}, ""), newTextResult(false, 0, nil, ""))
	clean := MergeText(newTextResult(false, 0, nil, ""), newTextResult(false, 0, nil, ""))
	imgFlagged := aggregateImages([]ImageAnalysis{{Flagged: true, Confidence: 0.2, Issues: []string{"y"}}})
	imgClean := aggregateImages([]ImageAnalysis{{Issues: []string{}}})

	for _, tc := range []struct {
		text TextSummary
		img  ImageResult
	}{
		{flagged, imgFlagged},
		{flagged, imgClean},
		{clean, imgFlagged},
		{clean, imgClean},
	} {
		d := Decide(tc.text, &tc.img)
		want := ActionApprove
		if tc.text.Flagged || tc.img.Flagged {
			want = ActionReject
		}
		assert.Equal(want, d.Action)
	}
}
