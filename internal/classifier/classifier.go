// Package classifier assigns a category to user feedback.
package classifier

import (
	"context"
	"strings"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

type Classifier interface {
	Classify(ctx context.Context, text string) models.FeedbackCategory
}

// KeywordClassifier matches lowercase keywords, checking categories in a
// fixed order so bug reports win over praise in mixed messages.
type KeywordClassifier struct {
	rules []rule
}

type rule struct {
	category models.FeedbackCategory
	keywords []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		rules: []rule{
			{models.FeedbackBug, []string{"bug", "error", "crash", "broken", "not working", "doesn't work", "fail", "wrong", "issue"}},
			{models.FeedbackFeatureRequest, []string{"feature", "please add", "add ", "would be nice", "suggest", "wish", "could you", "export", "support for"}},
			{models.FeedbackPraise, []string{"great", "awesome", "love", "thanks", "thank you", "excellent", "nice", "helpful", "amazing"}},
		},
	}
}

func (c *KeywordClassifier) Classify(_ context.Context, text string) models.FeedbackCategory {
	text = strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.category
			}
		}
	}
	return models.FeedbackGeneral
}
