package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultDriveAPI is the Google Drive v3 REST endpoint.
const DefaultDriveAPI = "https://www.googleapis.com/drive/v3"

var driveEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// DriveCredentials are OAuth2 installed-app credentials with a stored refresh token.
type DriveCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NewDriveClient returns an HTTP client that refreshes its access token as needed.
func NewDriveClient(ctx context.Context, creds DriveCredentials) *http.Client {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     driveEndpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.readonly"},
	}
	return conf.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
}

// Drive reads datasets stored as files in Google Drive, including shared
// drives. Refs are file IDs; the version token is the file's modifiedTime
// and revision.
type Drive struct {
	client  *http.Client
	baseURL string
}

// NewDrive creates a Drive source. An empty baseURL uses DefaultDriveAPI.
func NewDrive(client *http.Client, baseURL string) *Drive {
	if baseURL == "" {
		baseURL = DefaultDriveAPI
	}
	return &Drive{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type driveFile struct {
	ModifiedTime string `json:"modifiedTime"`
	Version      string `json:"version"`
}

// Version fetches file metadata only.
func (d *Drive) Version(ctx context.Context, ref string) (string, error) {
	q := url.Values{}
	q.Set("fields", "modifiedTime,version")
	q.Set("supportsAllDrives", "true")

	body, err := d.get(ctx, ref, q)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var meta driveFile
	if err := json.NewDecoder(body).Decode(&meta); err != nil {
		return "", unavailable("metadata", ref, err)
	}
	return meta.ModifiedTime + "#" + meta.Version, nil
}

// Fetch downloads the file content.
func (d *Drive) Fetch(ctx context.Context, ref string) ([]byte, error) {
	q := url.Values{}
	q.Set("alt", "media")
	q.Set("supportsAllDrives", "true")

	body, err := d.get(ctx, ref, q)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, unavailable("download", ref, err)
	}
	return data, nil
}

func (d *Drive) get(ctx context.Context, fileID string, q url.Values) (io.ReadCloser, error) {
	u := d.baseURL + "/files/" + url.PathEscape(fileID) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, unavailable("drive", fileID, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, unavailable("drive", fileID, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, unavailable("drive", fileID, fmt.Errorf("file not found or not shared with this account"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, unavailable("drive", fileID, fmt.Errorf("HTTP %s", resp.Status))
	}
	return resp.Body, nil
}
