package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"heartpredict/heart"
)

//go:embed templates/index.html
var templateFS embed.FS

const pageTitle = "Heart Failure Prediction App"

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"bold": renderBold,
}).ParseFS(templateFS, "templates/index.html"))

type option struct {
	Value    int
	Selected bool
}

type formField struct {
	heart.Field
	Value   string
	Options []option
	Error   string
}

func (f formField) MinText() string  { return formatNumber(f.Min) }
func (f formField) MaxText() string  { return formatNumber(f.Max) }
func (f formField) StepText() string { return formatNumber(f.Step) }

type pageData struct {
	Title  string
	Fields []formField
	Result *heart.Result
	Error  string
}

// handleForm 渲染表单, 不触发推理
func (h *Handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, newPageData(heart.DefaultInput().Vector(), nil))
}

// handleFormPredict 点击Predict后的提交
func (h *Handlers) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		data := newPageData(heart.DefaultInput().Vector(), nil)
		data.Error = "invalid form submission"
		h.renderPage(w, http.StatusBadRequest, data)
		return
	}

	submitted := submittedVector(r)
	in, err := heart.ParseValues(r.PostForm)
	if err != nil {
		h.renderError(w, submitted, err)
		return
	}

	result, err := h.predict(r.Context(), in)
	if err != nil {
		h.renderError(w, submitted, err)
		return
	}

	data := newPageData(in.Vector(), nil)
	data.Result = &result
	h.renderPage(w, http.StatusOK, data)
}

func (h *Handlers) renderError(w http.ResponseWriter, submitted []string, err error) {
	var verr *heart.ValidationError
	if errors.As(err, &verr) {
		data := newPageDataStrings(submitted, verr)
		h.renderPage(w, http.StatusBadRequest, data)
		return
	}
	data := newPageDataStrings(submitted, nil)
	data.Error = err.Error()
	h.renderPage(w, statusFor(err), data)
}

func (h *Handlers) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("render page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// submittedVector 保留用户原始输入, 便于出错时回显
func submittedVector(r *http.Request) []string {
	values := make([]string, len(heart.Schema))
	defaults := heart.DefaultInput().Vector()
	for i, field := range heart.Schema {
		if v := strings.TrimSpace(r.PostForm.Get(field.Name)); v != "" {
			values[i] = v
		} else {
			values[i] = formatNumber(defaults[i])
		}
	}
	return values
}

func newPageData(vector []float64, verr *heart.ValidationError) pageData {
	values := make([]string, len(vector))
	for i, v := range vector {
		values[i] = formatNumber(v)
	}
	return newPageDataStrings(values, verr)
}

func newPageDataStrings(values []string, verr *heart.ValidationError) pageData {
	fields := make([]formField, len(heart.Schema))
	for i, field := range heart.Schema {
		ff := formField{Field: field, Value: values[i]}
		if field.Kind == heart.KindChoice {
			for _, choice := range field.Choices {
				ff.Options = append(ff.Options, option{
					Value:    choice,
					Selected: strconv.Itoa(choice) == values[i],
				})
			}
		}
		if verr != nil {
			for _, fe := range verr.Errors {
				if fe.Field == field.Name {
					ff.Error = fe.Message
				}
			}
		}
		fields[i] = ff
	}
	return pageData{Title: pageTitle, Fields: fields}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// renderBold 把消息中的**粗体**标记渲染为<strong>, 其余内容转义
func renderBold(message string) template.HTML {
	parts := strings.Split(message, "**")
	var b strings.Builder
	for i, part := range parts {
		escaped := template.HTMLEscapeString(part)
		if i%2 == 1 && i < len(parts)-1 {
			b.WriteString("<strong>" + escaped + "</strong>")
			continue
		}
		if i%2 == 1 {
			b.WriteString("**")
		}
		b.WriteString(escaped)
	}
	return template.HTML(b.String())
}
