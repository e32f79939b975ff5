package identity

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// SessionCookieName carries the opaque session id.
const SessionCookieName = "identity_sid"

type ControllerRoutes struct {
	Login               string
	Signup              string
	Logout              string
	VerifyEmail         string
	VerificationSuccess string
	EmailVerification   string
	ResendLink          string
	Dashboard           string
	ResetPassword       string
	UserInfo            string
	UpdateName          string
	FederatedCallback   string
	AdminStats          string
}

// Controller exposes the identity state machine over HTTP.
type Controller struct {
	Debug    bool
	Logger   Logger
	Gate     *AccessGate
	Local    *LocalStrategy
	Fed      *FederatedStrategy
	Verifier AssertionVerifier
	Issuer   *Issuer
	Stats    *StatsService
	Users    UserStore
	Activity ActivityRecorder
	Routes   *ControllerRoutes
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			Login:               "/login",
			Signup:              "/signup",
			Logout:              "/logout",
			VerifyEmail:         "/verify-email",
			VerificationSuccess: "/verification-success",
			EmailVerification:   "/email-verification",
			ResendLink:          "/dashboard/resend-verification",
			Dashboard:           "/dashboard",
			ResetPassword:       "/api/user/reset-password",
			UserInfo:            "/api/userinfo",
			UpdateName:          "/profile/update-name",
			FederatedCallback:   "/auth/federated/callback",
			AdminStats:          "/api/admin/statistics",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Gate == nil {
		panic("Missing AccessGate in identity controller...")
	}

	if c.Local == nil {
		panic("Missing local strategy in identity controller...")
	}

	if c.Users == nil {
		panic("Missing UserStore in identity controller...")
	}

	return c
}

func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// RegisterRoutes mounts every identity endpoint on the app.
func (a *Controller) RegisterRoutes(app *fiber.App) {
	app.Post(a.Routes.Login, a.LoginPost)
	app.Post(a.Routes.Signup, a.SignupPost)
	app.Get(a.Routes.Logout, a.LogOut)

	app.Get(a.Routes.VerifyEmail, a.VerifyEmail)
	app.Get(a.Routes.VerificationSuccess, a.VerificationSuccessShow)
	app.Get(a.Routes.EmailVerification, a.EmailVerificationShow)
	app.Get(a.Routes.ResendLink, a.ResendVerification)

	app.Get(a.Routes.Dashboard, a.DashboardShow)

	app.Post(a.Routes.ResetPassword, a.ResetPasswordPost)
	app.Get(a.Routes.UserInfo, a.UserInfo)
	app.Post(a.Routes.UpdateName, a.UpdateNamePost)

	if a.Verifier != nil && a.Fed != nil {
		app.Get(a.Routes.FederatedCallback, a.FederatedCallback)
	}

	if a.Stats != nil {
		stats := a.Routes.AdminStats
		app.Get(stats+"/total-users", a.StatTotalUsers)
		app.Get(stats+"/active-today", a.StatActiveToday)
		app.Get(stats+"/average-active-past-week", a.StatAverageActivePastWeek)
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *Controller) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.fail(ctx, fiber.StatusBadRequest, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.fail(ctx, fiber.StatusBadRequest, err.Error())
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	user, err := a.Local.Authenticate(ctx.Context(), PasswordCredentials{
		Identifier: payload.Identifier,
		Password:   payload.Password,
	})
	if err != nil {
		// Missing identity and bad secret collapse into the same answer.
		a.Logger.Warn("login rejected", "identifier", payload.Identifier, "error", err)
		return a.fail(ctx, fiber.StatusUnauthorized, "Invalid credentials")
	}

	sid, bearer, err := a.Gate.EstablishSession(ctx.Context(), user, true)
	if err != nil {
		a.Logger.Error("login session establishment", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Could not establish session")
	}

	a.setSessionCookie(ctx, sid)

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":      true,
		"urlWithToken": fmt.Sprintf("%s?token=%s", a.Routes.Dashboard, bearer),
	})
}

// SignupRequest is the registration payload. The identifier doubles as the
// login email. Role is optional; empty or unrecognized values provision a
// member account.
type SignupRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Secret     string `form:"secret" json:"secret"`
	Name       string `form:"name" json:"name"`
	Role       string `form:"role" json:"role"`
}

// Validate will validate the payload
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Secret, validation.Required, validation.By(PasswordStrengthRule)),
	)
}

func (a *Controller) SignupPost(ctx *fiber.Ctx) error {
	payload := new(SignupRequest)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return a.fail(ctx, fiber.StatusBadRequest, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.fail(ctx, fiber.StatusBadRequest, err.Error())
	}

	if _, err := a.Users.GetByUsername(ctx.Context(), payload.Identifier); err == nil {
		return a.failFromError(ctx, ErrDuplicateIdentity)
	} else if !IsNotFound(err) {
		a.Logger.Error("signup lookup", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Registration failed")
	}

	hash, err := HashPassword(payload.Secret)
	if err != nil {
		a.Logger.Error("signup hash", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Registration failed")
	}

	user := &User{
		Username:     payload.Identifier,
		Name:         payload.Name,
		PasswordHash: hash,
		Role:         ParseRoleOrDefault(payload.Role),
	}

	user, err = a.Users.Register(ctx.Context(), user)
	if err != nil {
		a.Logger.Error("signup register", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Registration failed")
	}

	if a.Activity != nil {
		if err := a.Activity.Record(ctx.Context(), user.ID, time.Now()); err != nil {
			a.Logger.Error("signup activity record", "error", err)
		}
	}

	if a.Issuer != nil {
		if _, err := a.Issuer.Issue(ctx.Context(), user); err != nil {
			// The account exists either way; the user can ask for a re-send.
			a.Logger.Error("signup verification issue", "error", err)
		}
	}

	sid, _, err := a.Gate.EstablishSession(ctx.Context(), user, true)
	if err != nil {
		a.Logger.Error("signup session establishment", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Registration succeeded but login failed")
	}

	a.setSessionCookie(ctx, sid)

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"userId":   user.ID,
		"username": user.Username,
	})
}

func (a *Controller) LogOut(ctx *fiber.Ctx) error {
	sid := ctx.Cookies(SessionCookieName)
	if sid != "" {
		if err := a.Gate.Logout(ctx.Context(), sid); err != nil {
			// Cookie is cleared regardless; a half-torn-down session cannot
			// pass the admission dual check.
			a.Logger.Error("logout teardown", "error", err)
		}
	}

	a.clearSessionCookie(ctx)

	return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
}

func (a *Controller) VerifyEmail(ctx *fiber.Ctx) error {
	token := ctx.Query("token")

	_, _, err := a.Issuer.Consume(ctx.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrVerificationNotFound):
			return a.fail(ctx, fiber.StatusNotFound, "Verification token not found")
		case errors.Is(err, ErrVerificationExpired):
			return a.fail(ctx, fiber.StatusUnauthorized, "Verification token has expired")
		}
		a.Logger.Error("verify email", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Verification failed")
	}

	return ctx.Redirect(a.Routes.VerificationSuccess, fiber.StatusFound)
}

// VerificationSuccessShow is the landing target after a consumed
// verification link; the fresh bearer minted by consumption means the
// principal can proceed straight to the dashboard.
func (a *Controller) VerificationSuccessShow(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"message":   "Email address verified.",
		"dashboard": a.Routes.Dashboard,
	})
}

func (a *Controller) EmailVerificationShow(ctx *fiber.Ctx) error {
	user, err := a.Gate.Identify(ctx.Context(), ctx.Cookies(SessionCookieName))
	if err != nil {
		return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	}

	if user.Verified() {
		return ctx.Redirect(a.Routes.Dashboard, fiber.StatusFound)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Please verify your email address. Check your inbox for the verification link.",
		"resend":  a.Routes.ResendLink,
	})
}

func (a *Controller) ResendVerification(ctx *fiber.Ctx) error {
	user, err := a.Gate.Identify(ctx.Context(), ctx.Cookies(SessionCookieName))
	if err != nil {
		return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	}

	if err := a.Issuer.Resend(ctx.Context(), user); err != nil {
		a.Logger.Error("resend verification", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Could not send the verification email")
	}

	return ctx.Redirect(a.Routes.EmailVerification, fiber.StatusFound)
}

func (a *Controller) DashboardShow(ctx *fiber.Ctx) error {
	user, err := a.Gate.Admit(ctx.Context(), ctx.Cookies(SessionCookieName))
	if err != nil {
		if errors.Is(err, ErrEmailUnverified) {
			return ctx.Redirect(a.Routes.EmailVerification, fiber.StatusFound)
		}
		return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	OldPassword        string `form:"oldPassword" json:"oldPassword"`
	NewPassword        string `form:"newPassword" json:"newPassword"`
	ConfirmNewPassword string `form:"confirmNewPassword" json:"confirmNewPassword"`
}

// Validate will validate the payload
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.By(PasswordStrengthRule)),
		validation.Field(
			&r.ConfirmNewPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *Controller) ResetPasswordPost(ctx *fiber.Ctx) error {
	user, err := a.Gate.Identify(ctx.Context(), ctx.Cookies(SessionCookieName))
	if err != nil {
		return a.fail(ctx, fiber.StatusUnauthorized, "Authentication required")
	}

	payload := new(ResetPasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.fail(ctx, fiber.StatusBadRequest, "Failed to parse request body")
	}

	// All input checks complete before any state changes.
	if err := payload.Validate(); err != nil {
		return a.fail(ctx, fiber.StatusBadRequest, err.Error())
	}

	if !user.HasPassword() {
		return a.fail(ctx, fiber.StatusBadRequest, ErrPasswordlessAccount.Message)
	}

	// The caller must prove the current credential before it is replaced.
	if err := ComparePasswordAndHash(payload.OldPassword, user.PasswordHash); err != nil {
		a.Logger.Warn("reset password rejected", "user_id", user.ID)
		return a.fail(ctx, fiber.StatusUnauthorized, "Invalid credentials")
	}

	hash, err := HashPassword(payload.NewPassword)
	if err != nil {
		a.Logger.Error("reset password hash", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Password update failed")
	}

	if err := a.Users.UpdatePassword(ctx.Context(), user.ID, hash); err != nil {
		if IsNotFound(err) {
			return a.fail(ctx, fiber.StatusNotFound, "User not found")
		}
		a.Logger.Error("reset password update", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Password update failed")
	}

	// The old bearer no longer represents the credential it was minted for.
	if err := a.Gate.RevokeBearer(ctx.Context(), user.ID); err != nil {
		a.Logger.Error("reset password token revocation", "error", err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Password updated",
	})
}

func (a *Controller) UserInfo(ctx *fiber.Ctx) error {
	user, err := a.Gate.Admit(ctx.Context(), ctx.Cookies(SessionCookieName))
	if err != nil {
		return a.failFromError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// UpdateNameRequest payload
type UpdateNameRequest struct {
	Name string `form:"name" json:"name"`
}

// Validate will validate the payload
func (r UpdateNameRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

func (a *Controller) UpdateNamePost(ctx *fiber.Ctx) error {
	user, err := a.Gate.Admit(ctx.Context(), ctx.Cookies(SessionCookieName))
	if err != nil {
		return a.failFromError(ctx, err)
	}

	payload := new(UpdateNameRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.fail(ctx, fiber.StatusBadRequest, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.fail(ctx, fiber.StatusBadRequest, err.Error())
	}

	if err := a.Users.UpdateName(ctx.Context(), user.ID, payload.Name); err != nil {
		a.Logger.Error("update name", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Profile update failed")
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"name":    payload.Name,
	})
}

func (a *Controller) FederatedCallback(ctx *fiber.Ctx) error {
	raw := ctx.Query("id_token")
	if raw == "" {
		return a.fail(ctx, fiber.StatusBadRequest, "Missing identity assertion")
	}

	assertion, err := a.Verifier.Verify(ctx.Context(), raw)
	if err != nil {
		a.Logger.Warn("federated assertion rejected", "error", err)
		return a.fail(ctx, fiber.StatusBadRequest, "Identity assertion rejected")
	}

	user, err := a.Fed.Authenticate(ctx.Context(), *assertion)
	if err != nil {
		if errors.Is(err, ErrIdentityCollision) {
			return a.fail(ctx, fiber.StatusConflict, ErrIdentityCollision.Message)
		}
		a.Logger.Error("federated authenticate", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Federated login failed")
	}

	sid, _, err := a.Gate.EstablishSession(ctx.Context(), user, true)
	if err != nil {
		a.Logger.Error("federated session establishment", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Could not establish session")
	}

	a.setSessionCookie(ctx, sid)

	return ctx.Redirect(a.Routes.Dashboard, fiber.StatusFound)
}

func (a *Controller) StatTotalUsers(ctx *fiber.Ctx) error {
	if _, err := a.Gate.RequireRole(ctx.Context(), ctx.Cookies(SessionCookieName), RoleAdmin); err != nil {
		return a.failFromError(ctx, err)
	}

	count, err := a.Stats.TotalUsers(ctx.Context())
	if err != nil {
		a.Logger.Error("stat total users", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Statistics unavailable")
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"count": count})
}

func (a *Controller) StatActiveToday(ctx *fiber.Ctx) error {
	if _, err := a.Gate.RequireRole(ctx.Context(), ctx.Cookies(SessionCookieName), RoleAdmin); err != nil {
		return a.failFromError(ctx, err)
	}

	count, err := a.Stats.ActiveToday(ctx.Context())
	if err != nil {
		a.Logger.Error("stat active today", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Statistics unavailable")
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"count": count})
}

func (a *Controller) StatAverageActivePastWeek(ctx *fiber.Ctx) error {
	if _, err := a.Gate.RequireRole(ctx.Context(), ctx.Cookies(SessionCookieName), RoleAdmin); err != nil {
		return a.failFromError(ctx, err)
	}

	avg, err := a.Stats.AverageActivePastWeek(ctx.Context())
	if err != nil {
		a.Logger.Error("stat average active", "error", err)
		return a.fail(ctx, fiber.StatusInternalServerError, "Statistics unavailable")
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"average": avg})
}

func (a *Controller) setSessionCookie(ctx *fiber.Ctx, sid string) {
	ctx.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *Controller) clearSessionCookie(ctx *fiber.Ctx) {
	ctx.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *Controller) fail(ctx *fiber.Ctx, status int, message string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// failFromError maps the error taxonomy to an HTTP answer.
func (a *Controller) failFromError(ctx *fiber.Ctx, err error) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ctx.Status(statusFromCode(rich)).JSON(fiber.Map{
			"success":   false,
			"message":   rich.Message,
			"text_code": rich.TextCode,
		})
	}

	return a.fail(ctx, fiber.StatusInternalServerError, "Internal error")
}

func statusFromCode(e *goerrors.Error) int {
	switch e.Code {
	case goerrors.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case goerrors.CodeForbidden:
		return fiber.StatusForbidden
	case goerrors.CodeNotFound:
		return fiber.StatusNotFound
	case goerrors.CodeConflict:
		return fiber.StatusConflict
	case goerrors.CodeBadRequest:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
