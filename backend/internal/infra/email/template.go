package email

import (
	"fmt"
	"html/template"
	"strings"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	userdomain "promptlib-go-app/backend/internal/domain/user"
)

var moderationHTMLTemplate = template.Must(template.New("moderation_html").Parse(`<p>Hello {{.Name}},</p>
{{if .Approved}}<p>Good news! Your prompt <strong>{{.Title}}</strong> has been approved and is now visible to the community.</p>
{{else}}<p>Unfortunately your prompt <strong>{{.Title}}</strong> did not pass review and will stay hidden from the public library.</p>
<p>You can edit the prompt and it will be queued for another review.</p>{{end}}
{{if .URL}}<p><a href="{{.URL}}">View your prompt / 查看提示词</a></p>{{end}}
<hr>
<p>您好 {{.Name}}，</p>
{{if .Approved}}<p>您提交的提示词 <strong>{{.Title}}</strong> 已通过审核，现已对社区公开。</p>
{{else}}<p>您提交的提示词 <strong>{{.Title}}</strong> 未通过审核，当前仅自己可见。</p>
<p>修改后会自动重新进入审核队列。</p>{{end}}
<p>Prompt Library Team</p>`))

// composeModerationContent 根据审核结果生成邮件主题与正文。
func composeModerationContent(baseURL string, user *userdomain.User, p *promptdomain.Prompt) (subject string, textBody string, htmlBody string) {
	approved := p.Status == promptdomain.PromptStatusApproved
	name := safeDisplayName(user)
	promptURL := buildPromptURL(baseURL, p.ID)

	if approved {
		subject = fmt.Sprintf("Your prompt %q was approved | 提示词已通过审核", p.Title)
		textBody = fmt.Sprintf("Hello %s,\n\nGood news! Your prompt %q has been approved and is now visible to the community.\n%s\n\n----\n您好 %s，您提交的提示词《%s》已通过审核，现已对社区公开。\n\nPrompt Library Team",
			name, p.Title, promptURL, name, p.Title)
	} else {
		subject = fmt.Sprintf("Your prompt %q was rejected | 提示词未通过审核", p.Title)
		textBody = fmt.Sprintf("Hello %s,\n\nUnfortunately your prompt %q did not pass review and will stay hidden from the public library. You can edit it and it will be queued for another review.\n\n----\n您好 %s，您提交的提示词《%s》未通过审核，修改后会自动重新进入审核队列。\n\nPrompt Library Team",
			name, p.Title, name, p.Title)
	}

	tmplData := struct {
		Name     string
		Title    string
		Approved bool
		URL      string
	}{
		Name:     name,
		Title:    p.Title,
		Approved: approved,
		URL:      promptURL,
	}

	htmlBodyBuilder := new(strings.Builder)
	_ = moderationHTMLTemplate.Execute(htmlBodyBuilder, tmplData)
	htmlBody = htmlBodyBuilder.String()

	return subject, textBody, htmlBody
}

func buildPromptURL(baseURL, promptID string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s/prompts/%s", trimmed, promptID)
}

func safeDisplayName(user *userdomain.User) string {
	if user == nil {
		return "there"
	}
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(user.Email); email != "" {
		return email
	}
	return "there"
}
