package client

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"featureboard/internal/models"
)

// Me is the signed-in user as reported by /api/auth/me.
type Me struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Principal returns the identity the server attaches to this user's requests.
func (m Me) Principal() models.Principal { return models.Principal{ID: m.ID, Email: m.Email} }

// Staged is a temp upload: a private signed URL valid until ExpiresAt.
type Staged struct {
	TempFilename string    `json:"tempFilename"`
	SignedURL    string    `json:"signedUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type ListParams struct {
	Status    models.Status
	Search    string
	AuthorID  string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
	Hidden    *bool
}

func (p ListParams) query() string {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("status", string(p.Status))
	set("search", p.Search)
	set("authorId", p.AuthorID)
	set("sortBy", p.SortBy)
	set("sortOrder", p.SortOrder)
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Hidden != nil {
		q.Set("hidden", strconv.FormatBool(*p.Hidden))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

type CreateTicket struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl,omitempty"`
	TempFilename string `json:"tempFilename,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	OriginalType string `json:"originalType,omitempty"`
}

// ---- auth ----

func (c *Client) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	var u models.User
	in := map[string]string{"email": email, "name": name, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/register", in, "", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (Me, error) {
	var out struct {
		User  Me     `json:"user"`
		Token string `json:"token"`
	}
	in := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", in, "", &out); err != nil {
		return Me{}, err
	}
	c.SetToken(out.Token)
	return out.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, "", nil)
	c.SetToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var m Me
	_, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, "", &m)
	return m, err
}

func (c *Client) UpdateProfile(ctx context.Context, userID, name, displayName string) (*models.User, error) {
	var u models.User
	in := map[string]string{"name": name, "displayName": displayName}
	if _, err := c.do(ctx, http.MethodPatch, "/api/users/"+url.PathEscape(userID), in, "", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ---- tickets ----

func (c *Client) ListTickets(ctx context.Context, p ListParams) (models.TicketPage, error) {
	var page models.TicketPage
	_, err := c.do(ctx, http.MethodGet, "/api/tickets"+p.query(), nil, "", &page)
	return page, err
}

func (c *Client) Ticket(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	if _, err := c.do(ctx, http.MethodGet, "/api/tickets/"+url.PathEscape(id), nil, "", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) CreateTicket(ctx context.Context, in CreateTicket) (*models.Ticket, error) {
	var t models.Ticket
	if _, err := c.do(ctx, http.MethodPost, "/api/tickets", in, "", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) SetStatus(ctx context.Context, id string, status models.Status) (*models.Ticket, error) {
	var t models.Ticket
	in := map[string]string{"status": string(status)}
	if _, err := c.do(ctx, http.MethodPatch, "/api/tickets/"+url.PathEscape(id), in, "", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) SetVisibility(ctx context.Context, id string, hidden bool) (*models.Ticket, error) {
	var t models.Ticket
	in := map[string]bool{"hidden": hidden}
	if _, err := c.do(ctx, http.MethodPatch, "/api/tickets/"+url.PathEscape(id)+"/visibility", in, "", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeleteTicket(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/tickets/"+url.PathEscape(id), nil, "", nil)
	return err
}

func (c *Client) AddComment(ctx context.Context, ticketID, content string) (*models.Comment, error) {
	var cm models.Comment
	in := map[string]string{"ticketId": ticketID, "content": content}
	if _, err := c.do(ctx, http.MethodPost, "/api/comments", in, "", &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

func (c *Client) Vote(ctx context.Context, ticketID string) (models.VoteResult, error) {
	var res models.VoteResult
	_, err := c.do(ctx, http.MethodPost, "/api/votes", map[string]string{"ticketId": ticketID}, "", &res)
	return res, err
}

func (c *Client) MyVotes(ctx context.Context) ([]string, error) {
	var out struct {
		TicketIDs []string `json:"ticketIds"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/votes/mine", nil, "", &out)
	return out.TicketIDs, err
}

func (c *Client) Summary(ctx context.Context) (models.Summary, error) {
	var s models.Summary
	_, err := c.do(ctx, http.MethodGet, "/api/reports/summary", nil, "", &s)
	return s, err
}

// ---- uploads ----

func (c *Client) UploadTemp(ctx context.Context, name, contentType string, data []byte) (Staged, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+escapeQuotes(name)+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return Staged{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Staged{}, err
	}
	if err := mw.Close(); err != nil {
		return Staged{}, err
	}

	var st Staged
	_, err = c.do(ctx, http.MethodPost, "/api/uploads/temp", buf.Bytes(), mw.FormDataContentType(), &st)
	return st, err
}

// Promote moves a staged upload to permanent storage and returns its public URL.
func (c *Client) Promote(ctx context.Context, tempFilename, originalName, originalType string) (string, error) {
	var out struct {
		ImageURL string `json:"imageUrl"`
	}
	in := map[string]string{"tempFilename": tempFilename, "originalName": originalName, "originalType": originalType}
	_, err := c.do(ctx, http.MethodPost, "/api/uploads/move", in, "", &out)
	return out.ImageURL, err
}

// Cleanup discards the named temp uploads and, when full is set, sweeps every
// expired one. It returns the removed keys.
func (c *Client) Cleanup(ctx context.Context, tempFilenames []string, full bool) ([]string, error) {
	var out struct {
		RemovedFiles []string `json:"removedFiles"`
	}
	in := map[string]any{"tempFilenames": tempFilenames, "runFullCleanup": full}
	_, err := c.do(ctx, http.MethodPost, "/api/uploads/cleanup", in, "", &out)
	return out.RemovedFiles, err
}

// ---- admins ----

func (c *Client) Admins(ctx context.Context) ([]models.SystemAdmin, error) {
	var out struct {
		Items []models.SystemAdmin `json:"items"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/admins", nil, "", &out)
	return out.Items, err
}

func (c *Client) AddAdmin(ctx context.Context, email, name string) (*models.SystemAdmin, error) {
	var a models.SystemAdmin
	if _, err := c.do(ctx, http.MethodPost, "/api/admins", map[string]string{"email": email, "name": name}, "", &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) RemoveAdmin(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/admins/"+url.PathEscape(id), nil, "", nil)
	return err
}

func escapeQuotes(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b = append(b, '\\', s[i])
		case '\r', '\n':
		default:
			b = append(b, s[i])
		}
	}
	return string(b)
}
