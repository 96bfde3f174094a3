package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidURL is returned when a bookmark URL fails validation.
	ErrInvalidURL = errors.New("invalid URL")
	// ErrEmptyTitle is returned when a bookmark title is blank.
	ErrEmptyTitle = errors.New("empty title")
	// ErrTooLong is returned when a title or URL exceeds its length limit.
	ErrTooLong = errors.New("value too long")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type bookmarkInput struct {
	Title string `validate:"required,max=512"`
	URL   string `validate:"required,max=2048,url"`
}

// ValidateBookmark checks a title and URL pair before it is shown or stored.
// The title must be non-blank and the URL must pass ValidateBookmarkURL.
func ValidateBookmark(title, rawURL string) error {
	in := bookmarkInput{Title: strings.TrimSpace(title), URL: rawURL}
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			switch {
			case fe.Field() == "Title" && fe.Tag() == "required":
				return ErrEmptyTitle
			case fe.Tag() == "max":
				return fmt.Errorf("%w: %s exceeds %s characters", ErrTooLong, strings.ToLower(fe.Field()), fe.Param())
			case fe.Field() == "URL" && fe.Tag() == "required":
				return fmt.Errorf("%w: empty URL", ErrInvalidURL)
			case fe.Field() == "URL":
				return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidURL, rawURL)
			}
		}
		return err
	}
	return ValidateBookmarkURL(rawURL)
}

// ValidateBookmarkURL validates that a URL is acceptable for bookmarking.
// It requires the URL to have http or https scheme and a non-empty host.
func ValidateBookmarkURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}
