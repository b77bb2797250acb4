package scoring

import (
	"fmt"
	"strings"
)

const batchSystemInstruction = `You are a lead qualification assistant. Given a business description and a
list of Reddit posts, score how relevant each post is to the business as a
potential lead.

Score each post using ONLY one of these integer values: 100, 90, 80, 70, 60,
50, 0. Use 100 for a post where the author is explicitly asking for exactly
what the business offers, descending down to 0 for posts with no relevance
at all.

Return a JSON object: {"scores": [{"postId": "...", "score": N, "reason":
"one short sentence"}, ...]}, with exactly one entry per post id given.`

const suggestionSystemInstruction = `You write a short, genuine Reddit comment and a short direct message that a
business could send in response to a lead's post, without sounding like an
advertisement. Return a JSON object: {"suggestedComment": "...",
"suggestedDm": "..."}.`

// ScorablePost is the abbreviated post shape the batch-scoring prompt embeds.
type ScorablePost struct {
	PostID      string
	Subreddit   string
	RedditScore int
	NumComments int
	Title       string
	Content     string
}

const maxContentChars = 500

func (p ScorablePost) abbreviate() string {
	content := p.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	return fmt.Sprintf("[%s] r/%s (%d pts, %d comments) Title: %s Content: %s",
		p.PostID, p.Subreddit, p.RedditScore, p.NumComments, p.Title, content)
}

func buildBatchPrompt(businessDescription string, posts []ScorablePost) string {
	var sb strings.Builder
	sb.WriteString("Business description:\n")
	sb.WriteString(businessDescription)
	sb.WriteString("\n\nPosts:\n")
	for _, p := range posts {
		sb.WriteString(p.abbreviate())
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildSuggestionPrompt embeds the campaign's custom comment/DM instructions,
// when set, ahead of the lead post so they take precedence over the default
// suggestionSystemInstruction tone.
func buildSuggestionPrompt(businessDescription string, post ScorablePost, customCommentPrompt, customDmPrompt *string) string {
	var sb strings.Builder
	sb.WriteString("Business description:\n")
	sb.WriteString(businessDescription)
	if customCommentPrompt != nil && *customCommentPrompt != "" {
		sb.WriteString("\n\nComment instructions (follow these instead of the default tone):\n")
		sb.WriteString(*customCommentPrompt)
	}
	if customDmPrompt != nil && *customDmPrompt != "" {
		sb.WriteString("\n\nDM instructions (follow these instead of the default tone):\n")
		sb.WriteString(*customDmPrompt)
	}
	sb.WriteString("\n\nLead post:\n")
	sb.WriteString(post.abbreviate())
	return sb.String()
}
