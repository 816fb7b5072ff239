package service

import (
	"aut_portal_backend/internal/model"
	"bytes"
	"html/template"
	"regexp"
	"strings"
)

var exportTemplate = template.Must(template.New("quiz").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"mark": func(m model.MCQ, letter string) string {
		if normalizeOption(m.CorrectOption) == letter {
			return " ✓"
		}
		return ""
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; margin: 40px; color: #222; }
h1 { border-bottom: 2px solid #4f46e5; padding-bottom: 8px; }
h2 { color: #4f46e5; margin-top: 32px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 8px; text-align: left; vertical-align: top; }
th { background: #f3f4f6; }
.question { margin-bottom: 16px; }
.correct { color: #15803d; font-weight: bold; }
.answer { background: #f9fafb; padding: 8px; border-left: 3px solid #4f46e5; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Flashcards}}
<h2>Flashcards</h2>
<table>
<tr><th>#</th><th>Term</th><th>Definition</th></tr>
{{range $i, $f := .Flashcards}}<tr><td>{{inc $i}}</td><td>{{$f.Term}}</td><td>{{$f.Definition}}</td></tr>
{{end}}</table>
{{end}}
{{if .MCQs}}
<h2>Multiple Choice Questions</h2>
{{range $i, $m := .MCQs}}<div class="question">
<p><strong>{{inc $i}}. {{$m.Question}}</strong></p>
<ul>
<li{{if mark $m "A"}} class="correct"{{end}}>A. {{$m.OptionA}}{{mark $m "A"}}</li>
<li{{if mark $m "B"}} class="correct"{{end}}>B. {{$m.OptionB}}{{mark $m "B"}}</li>
<li{{if mark $m "C"}} class="correct"{{end}}>C. {{$m.OptionC}}{{mark $m "C"}}</li>
<li{{if mark $m "D"}} class="correct"{{end}}>D. {{$m.OptionD}}{{mark $m "D"}}</li>
</ul>
</div>
{{end}}{{end}}
{{if .OpenQuestions}}
<h2>Open Questions</h2>
{{range $i, $q := .OpenQuestions}}<div class="question">
<p><strong>{{inc $i}}. {{$q.Question}}</strong></p>
<p class="answer">{{$q.ModelAnswer}}</p>
</div>
{{end}}{{end}}
</body>
</html>
`))

var unsafeFileChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

// ExportQuizHTML 渲染可离线打印的测验文档
func ExportQuizHTML(quiz *model.Quiz) ([]byte, error) {
	var buf bytes.Buffer
	if err := exportTemplate.Execute(&buf, quiz); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFileName 由测验标题生成下载文件名
func ExportFileName(title string) string {
	name := strings.TrimSpace(unsafeFileChars.ReplaceAllString(title, "_"))
	if name == "" {
		name = "quiz"
	}
	return name + ".html"
}

// ExportQuiz 校验归属后导出
func (s *QuizService) ExportQuiz(userID uint, quizID string) ([]byte, string, error) {
	quiz, err := s.GetQuiz(userID, quizID)
	if err != nil {
		return nil, "", err
	}
	html, err := ExportQuizHTML(quiz)
	if err != nil {
		return nil, "", err
	}
	return html, ExportFileName(quiz.Title), nil
}
