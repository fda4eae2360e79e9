package feedback

import (
	"fmt"
	"strings"
	"text/template"
)

// File is one file quoted in a prompt.
type File struct {
	Path    string
	Content string
}

// SystemInput feeds the system prompt.
type SystemInput struct {
	Course      string
	Exercise    string
	Description string
	Startcode   []File
	Address     Address
}

// UserInput feeds the user prompt for one submission.
type UserInput struct {
	SubmissionID int64
	Files        []File
	TestResult   string
	Comment      string
}

const persona = `You are a teaching assistant for a Computer Science class.
You are very knowledgeable and are concerned with supporting your students.
Among the students you are known to give very helpful feedback and comments, likewise your
teaching philosophy is not to "spoon feed" them, i.e. you are never providing them with the
exercise solutions directly.`

var funcs = template.FuncMap{
	"persona": func() string { return persona },
	"trim":    strings.TrimSpace,
}

var systemTmpl = template.Must(template.New("system").Funcs(funcs).Parse(`{{persona}}

Your task is to review student submissions to a mandatory programming exercise{{with .Course}} in the course: "{{.}}"{{end}}.
The exercise description is given below as an XML element:

<exercise name="{{.Exercise}}">
{{trim .Description}}
</exercise>

The students are provided with "startcode" in a GitHub repository that they use as a template for their submission.
Its contents are given below in XML, where each "file" element carries the relative "path" of the file and its contents:

<startcode>
{{- range .Startcode}}
<file path="{{.Path}}">
{{.Content}}
</file>
{{- end}}
</startcode>

The user will prompt you with individual student submissions and your task is to respond with an extensive code review.
A submission is an XML element containing
- an "id" attribute identifying the submission,
- a list of "file" elements with the files that make up the submission,
- optionally, a "testresult" element with the output of running the unit tests on the submission,
- optionally, a "comment" element with remarks by the course teacher that should be taken into account.

Respond with an XML document with root element "response" and two child elements: "review" and "assessment".

The "review" element contains your commentary on the submission.
Focus mainly on program logic and the students' reasoning, less on syntax and code aesthetics.
It is markdown text that
  1. first, highlights what the students did well,
  2. second, points out potential errors,
  3. third, gives tips on what to improve in the future or which topics to look into again.
Address the student(s) directly. Write in a positive and motivating but moderate tone.
{{.Address.PromptPart}}
The "assessment" element contains an overall assessment on the A-F scale, where "A" means "exceeding expectations",
"B" means "very good, meeting all expectations" and so on.
`))

var userTmpl = template.Must(template.New("user").Funcs(funcs).Parse(`<submission id="{{.SubmissionID}}">
{{- range .Files}}
<file path="{{.Path}}">
{{.Content}}
</file>
{{- end}}
{{- with .TestResult}}
<testresult>
{{trim .}}
</testresult>
{{- end}}
{{- with .Comment}}
<comment>
{{trim .}}
</comment>
{{- end}}
</submission>
`))

// SystemPrompt renders the system prompt for an exercise.
func SystemPrompt(in SystemInput) (string, error) {
	var b strings.Builder
	if err := systemTmpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}

// UserPrompt renders the user prompt for one submission.
func UserPrompt(in UserInput) (string, error) {
	var b strings.Builder
	if err := userTmpl.Execute(&b, in); err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}
	return b.String(), nil
}
