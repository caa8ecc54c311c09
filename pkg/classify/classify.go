// Package classify turns raw captured text into a note kind plus the fields
// extracted from it. Classification is a pure function: no state, no I/O,
// and no dependency on the rest of the system.
//
// The grammar, informally:
//
//	#invest market looks toppy          -> investment note, tags [invest]
//	#golang generics are fine actually  -> tagged note, tags [golang]
//	todo: buy milk by friday            -> task, due date parsed from "by friday"
//	call mom tomorrow!                  -> task (due-date phrase), high priority
//	just a passing idea                 -> thought
//
// Hash-prefixed tokens become tags and are removed from the content. The
// first tag decides between tagged note and investment note. A "todo:" or
// "task:" prefix, or a parseable trailing due-date phrase, selects task.
// Everything else is a thought.
package classify

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/notabene-app/notabene/pkg/models"
)

// InvestTag is the reserved tag that routes a capture to the investment
// collection.
const InvestTag = "invest"

// Result is the structured outcome of classifying one capture.
type Result struct {
	Kind     models.Kind
	Content  string
	Tags     models.Tags
	Priority models.Priority
	DueDate  *time.Time
}

// Classifier parses capture text. The zero value is not usable; construct
// with New. Safe for concurrent use.
type Classifier struct {
	parser *when.Parser
	now    func() time.Time
}

func New() *Classifier {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Classifier{parser: w, now: time.Now}
}

// Classify maps raw text to a kind and its extracted fields. The returned
// content is normalized: markers, tags, and the due-date phrase removed and
// whitespace collapsed.
func (c *Classifier) Classify(text string) Result {
	res := Result{Kind: models.KindThought, Priority: models.PriorityMedium}

	text = strings.TrimSpace(text)

	// A trailing exclamation mark bumps priority; only tasks surface it,
	// but it is stripped regardless.
	if strings.HasSuffix(text, "!") {
		res.Priority = models.PriorityHigh
		text = strings.TrimRight(text, "! ")
	}

	isTask := false
	lower := strings.ToLower(text)
	for _, prefix := range []string{"todo:", "task:", "todo ", "task "} {
		if strings.HasPrefix(lower, prefix) {
			isTask = true
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}

	// Pull out hash-prefixed tokens in order.
	var words []string
	for _, word := range strings.Fields(text) {
		if len(word) > 1 && strings.HasPrefix(word, "#") {
			res.Tags = append(res.Tags, strings.TrimPrefix(word, "#"))
			continue
		}
		words = append(words, word)
	}
	text = strings.Join(words, " ")

	// A due-date phrase at the end of the text marks a task even without an
	// explicit prefix. Phrases in the middle are left alone; "meet tomorrow
	// at the office" is a thought about tomorrow, not a dated task.
	if r, err := c.parser.Parse(text, c.now()); err == nil && r != nil {
		if strings.TrimSpace(text[r.Index+len(r.Text):]) == "" {
			due := r.Time
			res.DueDate = &due
			rest := strings.TrimSpace(text[:r.Index])
			rest = strings.TrimSuffix(rest, " by")
			if rest == "by" {
				rest = ""
			}
			text = rest
			isTask = true
		}
	}

	res.Content = strings.TrimSpace(text)

	switch {
	case isTask:
		res.Kind = models.KindTask
	case len(res.Tags) > 0 && res.Tags[0] == InvestTag:
		res.Kind = models.KindInvestment
	case len(res.Tags) > 0:
		res.Kind = models.KindTaggedNote
	}

	if res.Kind != models.KindTask {
		res.Priority = ""
		res.DueDate = nil
	}
	return res
}
