// Package prompt renders the grounded question-answering prompt.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/akolanti/docqa/internal/domain/commonModels"
)

// Separator sits between retrieved chunks inside the context block.
const Separator = "\n\n---\n\n"

const defaultTemplate = `You are a study assistant answering questions about the user's notes.
Answer ONLY with information found in the context below. Do not use outside knowledge.
If the context contains code examples relevant to the question, include them in your answer.
You may mention the page number a piece of information comes from.
If the answer is not in the context, reply exactly with: {{.Refusal}}

Context:
{{.Context}}

Question: {{.Question}}

Answer:`

type Renderer struct {
	tmpl    *template.Template
	refusal string
}

type data struct {
	Context  string
	Question string
	Refusal  string
}

// New parses text, or the built-in template when text is empty.
func New(text, refusal string) (*Renderer, error) {
	if text == "" {
		text = defaultTemplate
	}
	for _, field := range []string{"{{.Context}}", "{{.Question}}"} {
		if !strings.Contains(text, field) {
			return nil, fmt.Errorf("prompt template must reference %s", field)
		}
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Renderer{tmpl: tmpl, refusal: refusal}, nil
}

func (r *Renderer) Refusal() string { return r.refusal }

// Render substitutes the retrieved chunks, in retrieval order, and the verbatim question.
func (r *Renderer) Render(matches []commonModels.Match, question string) (string, error) {
	var b strings.Builder
	err := r.tmpl.Execute(&b, data{
		Context:  BuildContext(matches),
		Question: question,
		Refusal:  r.refusal,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

func BuildContext(matches []commonModels.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("[page %d]\n%s", m.Chunk.PageNum, m.Chunk.Chunk))
	}
	return strings.Join(parts, Separator)
}
