package forum

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/etudier/etudier/core"
)

type Post struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Author      string     `json:"author" db:"author"` // username of the owner
	Title       string     `json:"title" db:"title"`
	Content     string     `json:"content" db:"content"`
	Upvote      int        `json:"upvote" db:"upvote"`
	Downvote    int        `json:"downvote" db:"downvote"`
	ReportCount int        `json:"report_count" db:"report_count"`
	ImageURLs   []string   `json:"image_urls" db:"image_urls"`
	Tags        []string   `json:"tags" db:"tags"`
	IsDuplicate bool       `json:"is_duplicate" db:"is_duplicate"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`   // UTC
	LastEdited  *time.Time `json:"last_edited" db:"last_edited"` // UTC

	Answers []Answer `json:"answers,omitempty" db:"-"`
}

func (p Post) Tally() Tally { return Tally{Upvote: p.Upvote, Downvote: p.Downvote} }

type Answer struct {
	ID        string    `json:"id" db:"id"`
	PostID    string    `json:"post_id" db:"post_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Author    string    `json:"author" db:"author"`
	Answer    string    `json:"answer" db:"answer"`
	Upvote    int       `json:"upvote" db:"upvote"`
	Downvote  int       `json:"downvote" db:"downvote"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

func (a Answer) Tally() Tally { return Tally{Upvote: a.Upvote, Downvote: a.Downvote} }

// NewPost is bound from a multipart form; images travel separately.
type NewPost struct {
	Title   string   `json:"title" form:"title" validate:"max=255"`
	Content string   `json:"content" form:"content" validate:"required,max=20000"`
	Tags    []string `json:"tags" form:"tags" validate:"max=10,dive,max=30"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Content = core.CleanString(np.Content)
	np.Tags = CleanTags(np.Tags)
	return validate.Struct(np)
}

type UpdatePost struct {
	Title   *string  `json:"title" validate:"omitempty,max=255"`
	Content *string  `json:"content" validate:"omitempty,min=1,max=20000"`
	Tags    []string `json:"tags" validate:"omitempty,max=10,dive,max=30"`
}

func (up *UpdatePost) Validate(validate *validator.Validate) error {
	if up.Title != nil {
		title := core.CleanString(*up.Title)
		up.Title = &title
	}
	if up.Content != nil {
		content := core.CleanString(*up.Content)
		up.Content = &content
	}
	if up.Tags != nil {
		up.Tags = CleanTags(up.Tags)
	}
	return validate.Struct(up)
}

type NewAnswer struct {
	Answer string `json:"answer" validate:"required,max=20000"`
}

func (na *NewAnswer) Validate(validate *validator.Validate) error {
	na.Answer = core.CleanString(na.Answer)
	return validate.Struct(na)
}

type CastVote struct {
	VoteType VoteType `json:"vote_type" validate:"required,oneof=upvote downvote"`
}

func (cv *CastVote) Validate(validate *validator.Validate) error {
	cv.VoteType = VoteType(core.CleanString(string(cv.VoteType), true /* lower */))
	return validate.Struct(cv)
}

type MarkDuplicate struct {
	IsDuplicate *bool `json:"is_duplicate"`
}

// ListFilter narrows the forum feed.
type ListFilter struct {
	Tag               string
	Search            string
	IncludeDuplicates bool
	Limit             int
	Offset            int
}

func (f ListFilter) Matches(p Post) bool {
	if p.IsDuplicate && !f.IncludeDuplicates {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range p.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		return strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q)
	}
	return true
}

// Image is an uploaded post picture.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CheckImages sniffs every image; they must all be pictures within the size limit.
func CheckImages(images []Image, maxSize int64, maxCount int) error {
	if len(images) > maxCount {
		return core.NewValidationError(nil, core.FieldError{
			Field: "images",
			Error: "at most " + strconv.Itoa(maxCount) + " images are allowed",
		})
	}
	for i := range images {
		if int64(len(images[i].Data)) > maxSize {
			return core.NewValidationError(nil, core.FieldError{
				Field: "images",
				Error: images[i].Filename + " exceeds the maximum size of " + strconv.FormatInt(maxSize>>20, 10) + "MB",
			})
		}
		ct := http.DetectContentType(images[i].Data)
		if !strings.HasPrefix(ct, "image/") {
			return core.NewValidationError(nil, core.FieldError{Field: "images", Error: images[i].Filename + " is not an image"})
		}
		images[i].ContentType = ct
	}
	return nil
}

// CleanTags trims, lowers and dedupes tags, keeping their order.
func CleanTags(tags []string) []string {
	cleaned := core.CleanStrings(tags, true /* lower */)
	seen := make(map[string]struct{}, len(cleaned))
	uniq := make([]string, 0, len(cleaned))
	for _, t := range cleaned {
		t = strings.TrimPrefix(t, "#")
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	return uniq
}
