// Package echo exposes the SSO flows over HTTP using the Echo framework.
package echo

import (
	goerrors "errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.avinoo.ir/sso/api"
	serrors "go.avinoo.ir/sso/errors"
	"go.avinoo.ir/sso/oracle"
	"go.avinoo.ir/sso/services"
)

// SSOAPI holds the handler dependencies.
type SSOAPI struct {
	auth *services.AuthService
	// meetClientID is the registration used when a meeting entry request
	// names no client.
	meetClientID string
}

// NewSSOAPI initializes the SSO API.
func NewSSOAPI(auth *services.AuthService, meetClientID string) *SSOAPI {
	return &SSOAPI{auth: auth, meetClientID: meetClientID}
}

// RegisterRoutes registers the SSO routes.
func (a *SSOAPI) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/sso")

	g.POST("/api/login", a.LoginHandler)
	g.POST("/api/register", a.RegisterHandler)
	g.POST("/api/validate-token", a.ValidateTokenHandler)
	g.POST("/api/logout", a.LogoutHandler)
	g.GET("/api/logout", a.LogoutHandler)
	g.GET("/api/user-info", a.UserInfoHandler)

	// Browser flows.
	g.GET("/callback", a.CallbackHandler)
	g.GET("/meet/:room", a.MeetHandler)
}

// LoginHandler authenticates credentials and returns a bearer token together
// with the client callback URL.
func (a *SSOAPI) LoginHandler(c echo.Context) error {
	var req api.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed request body"))
	}

	result, err := a.auth.Login(c.Request().Context(), services.LoginInput{
		Username:    req.Username,
		Password:    req.Password,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		State:       req.State,
		Next:        req.Next,
	}, requestMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, loginResponse(result))
}

// RegisterHandler creates an account. When a client_id is supplied the new
// user is logged in within the same request.
func (a *SSOAPI) RegisterHandler(c echo.Context) error {
	var req api.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed request body"))
	}

	ctx := c.Request().Context()
	user, err := a.auth.Register(ctx, services.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return writeError(c, err)
	}

	if req.ClientID == "" {
		return c.JSON(http.StatusCreated, map[string]any{
			"success": true,
			"user":    api.NewUserPayload(user),
		})
	}

	result, err := a.auth.Login(ctx, services.LoginInput{
		Username:    req.Username,
		Password:    req.Password,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, requestMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, loginResponse(result))
}

// ValidateTokenHandler checks a bearer token. Invalid tokens are a 200 with
// valid=false, not an error status.
func (a *SSOAPI) ValidateTokenHandler(c echo.Context) error {
	var req api.ValidateTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed request body"))
	}

	result, err := a.auth.ValidateToken(c.Request().Context(), req.Token, requestMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	resp := api.ValidateTokenResponse{Valid: result.Valid}
	if result.Valid {
		resp.User = api.NewUserPayload(result.User)
		resp.ExpiresAt = result.Token.ExpiresAt.Unix()
	}
	return c.JSON(http.StatusOK, resp)
}

// LogoutHandler revokes the caller's token. Accepts the token in the body,
// the Authorization header, or a query parameter, so both API and browser
// logouts work.
func (a *SSOAPI) LogoutHandler(c echo.Context) error {
	var req api.LogoutRequest
	if c.Request().Method == http.MethodPost {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("malformed request body"))
		}
	}
	if req.Token == "" {
		req.Token = bearerToken(c)
	}
	if req.ClientID == "" {
		req.ClientID = c.QueryParam("client_id")
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("token is required"))
	}

	redirectURI, err := a.auth.Logout(c.Request().Context(), req.Token, req.ClientID, requestMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, api.LogoutResponse{Success: true, RedirectURI: redirectURI})
}

// UserInfoHandler returns the identity snapshot of the token's user.
func (a *SSOAPI) UserInfoHandler(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, serrors.NewAccessDenied("missing bearer token"))
	}

	user, err := a.auth.GetUserInfo(c.Request().Context(), token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, serrors.NewAccessDenied("invalid token"))
	}
	return c.JSON(http.StatusOK, api.NewUserPayload(user))
}

// CallbackHandler completes authorization for an authenticated browser and
// redirects to the client callback with a fresh token and state.
func (a *SSOAPI) CallbackHandler(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, serrors.NewAccessDenied("missing bearer token"))
	}

	ctx := c.Request().Context()
	user, err := a.auth.GetUserInfo(ctx, token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, serrors.NewAccessDenied("invalid token"))
	}

	clientID := c.QueryParam("client_id")
	if clientID == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("client_id is required"))
	}

	target, err := a.auth.Callback(ctx, user, clientID,
		c.QueryParam("redirect_uri"), c.QueryParam("state"), c.QueryParam("next"),
		requestMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.Redirect(http.StatusFound, target)
}

// MeetHandler checks meeting access and redirects the browser into the room
// with a signed assertion attached.
func (a *SSOAPI) MeetHandler(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, serrors.NewAccessDenied("missing bearer token"))
	}

	ctx := c.Request().Context()
	user, err := a.auth.GetUserInfo(ctx, token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, serrors.NewAccessDenied("invalid token"))
	}

	clientID := c.QueryParam("client_id")
	if clientID == "" {
		clientID = a.meetClientID
	}

	target, err := a.auth.MeetingRedirect(ctx, user, clientID, c.Param("room"), requestMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.Redirect(http.StatusFound, target)
}

// bearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for browser navigation.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}

func requestMeta(c echo.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func loginResponse(result *services.LoginResult) api.LoginResponse {
	return api.LoginResponse{
		Success:     true,
		AccessToken: result.Token.Value,
		TokenType:   result.Token.TokenType,
		ExpiresIn:   int64(result.Token.ExpiresAt.Sub(result.Token.IssuedAt).Seconds()),
		RedirectURI: result.RedirectURI,
		User:        api.NewUserPayload(result.User),
	}
}

// writeError maps service errors onto HTTP statuses and the JSON error body.
func writeError(c echo.Context, err error) error {
	var denied *oracle.DeniedError

	switch {
	case goerrors.Is(err, serrors.ErrValidation):
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest(err.Error()))
	case goerrors.Is(err, serrors.ErrAuthenticationFailed):
		return c.JSON(http.StatusUnauthorized, serrors.NewAuthenticationFailed())
	case goerrors.Is(err, serrors.ErrAccountLocked), goerrors.Is(err, serrors.ErrAccountDisabled):
		return c.JSON(http.StatusForbidden, serrors.NewAccessDenied(err.Error()))
	case goerrors.Is(err, serrors.ErrRedirectRejected):
		return c.JSON(http.StatusBadRequest, serrors.NewRedirectRejected())
	case goerrors.Is(err, serrors.ErrSessionInvalid), goerrors.Is(err, serrors.ErrSessionNotFound):
		return c.JSON(http.StatusBadRequest, serrors.NewSessionInvalid())
	case goerrors.Is(err, serrors.ErrClientNotFound), goerrors.Is(err, serrors.ErrClientInactive):
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidClient(err.Error()))
	case goerrors.Is(err, serrors.ErrUserAlreadyExists):
		return c.JSON(http.StatusConflict, serrors.NewInvalidRequest(err.Error()))
	case goerrors.Is(err, serrors.ErrTokenExpiredOrRevoked):
		return c.JSON(http.StatusUnauthorized, serrors.NewAccessDenied(err.Error()))
	case goerrors.As(err, &denied):
		return c.JSON(http.StatusForbidden, serrors.NewAccessDenied(denied.Reason))
	case goerrors.Is(err, serrors.ErrOracleUnavailable):
		return c.JSON(http.StatusServiceUnavailable, serrors.NewServerError(err.Error()))
	case goerrors.Is(err, serrors.ErrSigningFailure):
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("token signing failed")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("token signing failed"))
	default:
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("unhandled error in SSO handler")
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("internal server error"))
	}
}
