package emulator

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/errors"
	"github.com/dropDatabas3/authemu/internal/http/helpers"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

var actionTmpl = template.Must(template.New("action").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Form}}<form method="get" action="/emulator/action">
{{range $k, $v := .Form}}<input type="hidden" name="{{$k}}" value="{{$v}}">
{{end}}<input type="password" name="newPassword" placeholder="New password" autofocus>
<button type="submit">Save</button>
</form>{{end}}
{{if .ContinueURL}}<p><a href="{{.ContinueURL}}">Continue</a></p>{{end}}
</body></html>
`))

type actionPage struct {
	Title       string
	Message     string
	ContinueURL string
	Form        map[string]string
}

// ActionController maneja GET /emulator/action, el destino de los oobLink.
type ActionController struct {
	svc *auth.Service
}

// NewActionController crea el controller.
func NewActionController(svc *auth.Service) *ActionController {
	return &ActionController{svc: svc}
}

// Action aplica el código según mode: verifyEmail, verifyAndChangeEmail,
// recoverEmail y resetPassword consumen el código; signIn redirige a la app.
func (c *ActionController) Action(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, code, tenantID := q.Get("mode"), q.Get("oobCode"), q.Get("tenantId")
	continueURL := q.Get("continueUrl")
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("emulator:action"), logger.String("mode", mode))

	if code == "" {
		render(w, http.StatusBadRequest, actionPage{Title: "Error", Message: errors.ErrMissingOobCode.Message()})
		return
	}
	projectID, ok := c.svc.LocateOobCode(code, tenantID)
	if !ok {
		render(w, http.StatusBadRequest, actionPage{Title: "Error", Message: errors.ErrInvalidOobCode.Message()})
		return
	}
	caller := helpers.Caller(r, projectID, tenantID)

	var (
		page actionPage
		err  error
	)
	switch mode {
	case "verifyEmail", "verifyAndChangeEmail", "recoverEmail":
		var resp *auth.SetAccountInfoResponse
		resp, err = c.svc.SetAccountInfo(r.Context(), caller, auth.SetAccountInfoRequest{OobCode: code, TenantID: tenantID})
		if err == nil {
			page = actionPage{Title: "Email verified", Message: "The email " + resp.Email + " has been verified."}
			if mode == "recoverEmail" {
				page = actionPage{Title: "Email restored", Message: "Your sign-in email has been changed back to " + resp.Email + "."}
			}
		}

	case "resetPassword":
		newPassword := q.Get("newPassword")
		var resp *auth.ResetPasswordResponse
		resp, err = c.svc.ResetPassword(r.Context(), caller, auth.ResetPasswordRequest{OobCode: code, NewPassword: newPassword, TenantID: tenantID})
		switch {
		case err != nil:
		case newPassword == "":
			form := map[string]string{"mode": mode, "oobCode": code}
			if tenantID != "" {
				form["tenantId"] = tenantID
			}
			if continueURL != "" {
				form["continueUrl"] = continueURL
			}
			page = actionPage{Title: "Reset your password", Message: "for " + resp.Email, Form: form}
		default:
			page = actionPage{Title: "Password changed", Message: "You can now sign in as " + resp.Email + " with your new password."}
		}

	case "signIn":
		// el código lo consume la app con signInWithEmailLink
		if continueURL != "" {
			if u, perr := url.Parse(continueURL); perr == nil {
				v := u.Query()
				for k, vals := range q {
					if k != "continueUrl" {
						v[k] = vals
					}
				}
				u.RawQuery = v.Encode()
				http.Redirect(w, r, u.String(), http.StatusFound)
				return
			}
		}
		page = actionPage{Title: "Sign-in link", Message: "Open this link in the app that requested it to finish signing in."}

	default:
		render(w, http.StatusBadRequest, actionPage{Title: "Error", Message: "Unknown mode: " + mode})
		return
	}

	if err != nil {
		appErr := errors.FromError(err)
		log.Debug("action rejected", logger.Code(appErr.Code))
		render(w, appErr.HTTPStatus, actionPage{Title: "Error", Message: appErr.Message()})
		return
	}
	if page.Form == nil {
		page.ContinueURL = continueURL
	}
	render(w, http.StatusOK, page)
}

func render(w http.ResponseWriter, status int, p actionPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = actionTmpl.Execute(w, p)
}
