// Package i18n renders user-facing messages in the language negotiated from
// the Accept-Language header. English message keys double as the English text.
package i18n

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. Keys are the English text.
const (
	MsgUserCreated      = "User created successfully"
	MsgUserLoggedIn     = "User logged in successfully"
	MsgUserLoggedOut    = "User logged out successfully"
	MsgTokensRefreshed  = "Tokens refreshed successfully"
	MsgUserExists       = "User with this user name already exists"
	MsgInvalidLogin     = "Invalid user name or password"
	MsgNoToken          = "Authentication required: No token provided"
	MsgAuthFailed       = "Authentication failed, invalid token"
	MsgTokenExpired     = "Authentication failed, token expired"
	MsgWrongTokenType   = "Authentication failed, token type not valid"
	MsgTokenRevoked     = "Authentication failed, token revoked"
	MsgUserNotFound     = "Authentication failed, user not found"
	MsgRefreshRequired  = "Refresh token required"
	MsgCostNotFound     = "Cost with id %s not found"
	MsgCostForbidden    = "You do not have permission to access this cost"
	MsgValidationFailed = "Validation failed"
	MsgInvalidJSON      = "Invalid JSON body"
	MsgInvalidCostID    = "Invalid cost id"
	MsgNotFound         = "Not found"
	MsgMethodNotAllowed = "Method not allowed"
	MsgTooManyRequests  = "Too many requests, please try again later"
	MsgInternalError    = "Internal server error"
	MsgRequestTooLarge  = "Request body too large"
	MsgHello            = "Hello World!"
)

var supported = []language.Tag{language.English, language.Persian}

var matcher = language.NewMatcher(supported)

var translations = map[string]string{
	MsgUserCreated:      "کاربر با موفقیت ایجاد شد",
	MsgUserLoggedIn:     "کاربر با موفقیت وارد شد",
	MsgUserLoggedOut:    "کاربر با موفقیت خارج شد",
	MsgTokensRefreshed:  "توکن‌ها با موفقیت تازه شدند",
	MsgUserExists:       "کاربری با این نام کاربری از قبل وجود دارد",
	MsgInvalidLogin:     "نام کاربری یا رمز عبور نامعتبر است",
	MsgNoToken:          "احراز هویت لازم است: توکنی ارسال نشده",
	MsgAuthFailed:       "احراز هویت ناموفق بود، توکن نامعتبر است",
	MsgTokenExpired:     "احراز هویت ناموفق بود، توکن منقضی شده است",
	MsgWrongTokenType:   "احراز هویت ناموفق بود، نوع توکن (token type) معتبر نیست",
	MsgTokenRevoked:     "احراز هویت ناموفق بود، توکن باطل شده است",
	MsgUserNotFound:     "احراز هویت ناموفق بود، کاربر یافت نشد",
	MsgRefreshRequired:  "توکن تازه‌سازی لازم است",
	MsgCostNotFound:     "هزینه با شناسه %s یافت نشد",
	MsgCostForbidden:    "شما اجازه دسترسی به این هزینه را ندارید",
	MsgValidationFailed: "اعتبارسنجی ناموفق بود",
	MsgInvalidJSON:      "بدنه JSON نامعتبر است",
	MsgInvalidCostID:    "شناسه هزینه نامعتبر است",
	MsgNotFound:         "یافت نشد",
	MsgMethodNotAllowed: "متد مجاز نیست",
	MsgTooManyRequests:  "درخواست‌ها بیش از حد مجاز است، لطفاً بعداً تلاش کنید",
	MsgInternalError:    "خطای داخلی سرور",
	MsgRequestTooLarge:  "بدنه درخواست بیش از حد بزرگ است",
	MsgHello:            "سلام دنیا!",
}

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, fa := range translations {
		// Builder only errors on malformed messages, which static strings are not.
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Persian, key, fa)
	}
	return b
}

// Match picks the best supported language for an Accept-Language header value.
// Unparseable or empty headers yield English.
func Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, index, _ := matcher.Match(tags...)
	return supported[index]
}

type contextKey struct{}

// WithLanguage stores tag in ctx.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, tag)
}

// LanguageFromContext returns the negotiated language, English when unset.
func LanguageFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(contextKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}

// Printer returns a printer for tag backed by the message catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// T renders key with args in the language stored in ctx.
func T(ctx context.Context, key string, args ...any) string {
	return Printer(LanguageFromContext(ctx)).Sprintf(key, args...)
}
