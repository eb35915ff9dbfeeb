package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/apperror"
)

const maxBodyBytes = 64 << 10

// fieldAlias maps accepted request keys onto one canonical field. Aliases
// are tried in order and the first key present wins.
type fieldAlias struct {
	canonical string
	aliases   []string
}

var fieldAliases = []fieldAlias{
	{canonical: "email", aliases: []string{"email", "userEmail", "username", "login"}},
	{canonical: "password", aliases: []string{"password", "pass", "senha"}},
	{canonical: "refreshToken", aliases: []string{"refreshToken", "refresh_token", "token"}},
}

// canonicalize resolves aliases in raw. Keys present with a JSON null count
// as absent; any other non-string value is rejected.
func canonicalize(raw map[string]json.RawMessage) (map[string]string, error) {
	out := make(map[string]string, len(fieldAliases))
	for _, fa := range fieldAliases {
		for _, alias := range fa.aliases {
			v, ok := raw[alias]
			if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
				continue
			}
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, apperror.Validation(fmt.Sprintf("%s must be a string", alias))
			}
			out[fa.canonical] = s
			break
		}
	}
	return out, nil
}

// readFields decodes a JSON object body and resolves its aliases. An empty
// body yields no fields.
func readFields(c echo.Context) (map[string]string, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]string{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.Validation("request body must be a JSON object")
	}
	return canonicalize(raw)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"max=255" doc:"also accepted as userEmail, username or login"`
	Password string `json:"password" validate:"max=1024" doc:"also accepted as pass or senha"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"max=512" doc:"also accepted as refresh_token or token"`
}

func bindLogin(c echo.Context) (LoginRequest, error) {
	fields, err := readFields(c)
	if err != nil {
		return LoginRequest{}, err
	}
	req := LoginRequest{Email: fields["email"], Password: fields["password"]}
	return req, c.Validate(&req)
}

func bindRefresh(c echo.Context) (RefreshRequest, error) {
	fields, err := readFields(c)
	if err != nil {
		return RefreshRequest{}, err
	}
	req := RefreshRequest{RefreshToken: fields["refreshToken"]}
	return req, c.Validate(&req)
}
