package handler

import (
	"html/template"
	"log/slog"
	"net/http"
)

// callbackPage はOAuthコールバック結果ページの表示内容。
type callbackPage struct {
	Title     string
	Heading   string
	Color     string
	Lines     []string
	Detail    string
	AutoClose bool
}

var callbackTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui; display: flex; align-items: center; justify-content: center; height: 100vh; background: #1a1a1a; color: white; }
.container { text-align: center; background: #2a2a2a; padding: 40px; border-radius: 10px; max-width: 400px; }
h1 { color: {{.Color}}; margin: 0 0 20px 0; }
p { margin: 0 0 20px 0; }
.detail { color: #9ca3af; font-size: 14px; }
button { background: #6b7280; color: white; border: none; padding: 10px 20px; border-radius: 5px; cursor: pointer; font-size: 16px; }
</style>
</head>
<body>
<div class="container">
<h1>{{.Heading}}</h1>
{{range .Lines}}<p>{{.}}</p>
{{end}}{{if .Detail}}<p class="detail">{{.Detail}}</p>
{{end}}<button onclick="window.close()">Close Window</button>
{{if .AutoClose}}<script>setTimeout(() => window.close(), 3000);</script>
{{end}}</div>
</body>
</html>
`))

var (
	pageDenied = callbackPage{
		Title:   "Authorization Denied",
		Heading: "Authorization Denied",
		Color:   "#f59e0b",
		Lines: []string{
			"Access was not granted to your Google account.",
			"Please close this window and try again if you want to enable Calendar and Gmail widgets.",
		},
	}
	pageInvalid = callbackPage{
		Title:   "Invalid Request",
		Heading: "Invalid Request",
		Color:   "#ef4444",
		Lines:   []string{"No authorization code received."},
	}
	pageSuccess = callbackPage{
		Title:   "Authorization Successful",
		Heading: "Authorization Successful!",
		Color:   "#4ade80",
		Lines: []string{
			"Your Google account has been authorized.",
			"You can close this window and return to the dashboard.",
		},
		AutoClose: true,
	}
	pageFailed = callbackPage{
		Title:   "Authorization Failed",
		Heading: "Authorization Failed",
		Color:   "#ef4444",
		Lines: []string{
			"There was an error saving your authorization.",
			"Please try again.",
		},
	}
)

// GoogleCallback はGoogleの同意画面からのリダイレクトを処理し、結果ページを返す。
// GET /api/v1/google/callback?code=xxx&state=yyy
// GET /api/v1/google/callback?error=access_denied&error_description=...
func (h *DashboardHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		page := pageDenied
		page.Detail = q.Get("error_description")
		if page.Detail == "" {
			page.Detail = errCode
		}
		slog.Warn("Google認可が拒否されました", slog.String("error", errCode))
		renderCallback(w, http.StatusOK, page)
		return
	}

	code := q.Get("code")
	if code == "" {
		renderCallback(w, http.StatusBadRequest, pageInvalid)
		return
	}

	if !h.service.CompleteAuthorization(r.Context(), code, q.Get("state")) {
		renderCallback(w, http.StatusOK, pageFailed)
		return
	}
	renderCallback(w, http.StatusOK, pageSuccess)
}

// callbackContentSecurityPolicy は結果ページ内のstyle要素と自動クローズのscriptのみを許可する。
const callbackContentSecurityPolicy = "default-src 'none'; style-src 'unsafe-inline'; script-src 'unsafe-inline'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

func renderCallback(w http.ResponseWriter, status int, page callbackPage) {
	w.Header().Set("Content-Security-Policy", callbackContentSecurityPolicy)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackTemplate.Execute(w, page); err != nil {
		slog.Error("failed to render callback page", slog.String("error", err.Error()))
	}
}
