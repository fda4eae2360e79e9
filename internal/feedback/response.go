// Package feedback reads and writes feedback artifacts and builds the
// prompts used to have them drafted by a language model.
package feedback

import (
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/me/oblig/pkg/model"
)

// Response is the feedback artifact: a markdown review and a letter grade.
type Response struct {
	XMLName    xml.Name `xml:"response"`
	Review     string   `xml:"review"`
	Assessment string   `xml:"assessment"`
}

// Letter returns the trimmed, upper-cased assessment.
func (r *Response) Letter() string {
	return strings.ToUpper(strings.TrimSpace(r.Assessment))
}

var fenceRe = regexp.MustCompile("(?s)^```(?:xml)?\\s*\n?(.*?)\\s*```$")

// Normalize cleans up model output: it drops a surrounding code fence,
// trims every line and adds the <response> root when the model left it out.
func Normalize(raw string) string {
	lines := strings.Split(unfence(raw), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return withRoot(strings.TrimSpace(strings.Join(lines, "\n")))
}

func unfence(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func withRoot(s string) string {
	if strings.HasPrefix(s, "<review>") {
		return "<response>\n" + s + "\n</response>"
	}
	return s
}

var (
	reviewRe     = regexp.MustCompile(`(?s)<review>(.*?)</review>`)
	assessmentRe = regexp.MustCompile(`(?s)<assessment>(.*?)</assessment>`)
)

// Parse decodes a feedback document. Reviews are markdown and may contain
// characters that are not valid XML, so the elements are extracted
// textually when strict decoding fails.
func Parse(data []byte) (*Response, error) {
	s := withRoot(unfence(string(data)))
	var r Response
	if err := xml.Unmarshal([]byte(s), &r); err != nil {
		m := reviewRe.FindStringSubmatch(s)
		if m == nil {
			return nil, fmt.Errorf("parse feedback: %w", err)
		}
		r.Review = m[1]
		if a := assessmentRe.FindStringSubmatch(s); a != nil {
			r.Assessment = a[1]
		}
	}
	r.Review = strings.TrimSpace(r.Review)
	r.Assessment = strings.TrimSpace(r.Assessment)
	return &r, nil
}

// Read parses the feedback file at path. A document without review text
// yields model.ErrEmptyFeedback.
func Read(path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if r.Review == "" {
		return r, fmt.Errorf("%s: %w", path, model.ErrEmptyFeedback)
	}
	return r, nil
}

// Write stores r at path in a form that is easy to edit by hand; the
// review is written verbatim rather than XML-escaped.
func Write(path string, r *Response) error {
	doc := fmt.Sprintf("<response>\n<review>\n%s\n</review>\n<assessment>%s</assessment>\n</response>\n",
		strings.TrimSpace(r.Review), strings.TrimSpace(r.Assessment))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write feedback: %w", err)
	}
	return nil
}

// Manual returns the template prepared for operator-written feedback.
func Manual(groupName string, addr Address) *Response {
	var heading, body string
	switch addr.Locale {
	case LocaleEnglish:
		heading, body = "Group", "Hi! It looks like nothing has been done here yet?!\n\nCould you give it another try?"
	case LocaleGerman:
		heading, body = "Gruppe", "Hallo! Es sieht so aus, als wäre hier noch nichts passiert?!\n\nKönnt ihr es nochmal versuchen?"
	default:
		heading, body = "Gruppe", "Hei! Det ser ut som om du ikke har gjort noen ting her?!\n\nKan du prøve igjen?"
	}
	review := body
	if groupName != "" {
		review = "# " + heading + " " + groupName + "\n\n" + body
	}
	return &Response{Review: review, Assessment: "F"}
}

// LetterToGrade maps a letter assessment to the numeric grade recorded for
// a passing submission.
func LetterToGrade(letter string) float64 {
	switch strings.ToUpper(strings.TrimSpace(letter)) {
	case "A":
		return 100
	case "B":
		return 85
	case "C":
		return 70
	case "D":
		return 60
	default:
		return 50
	}
}
