package vendorclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/carevista/practicebackend/lib/myerrors"
)

const (
	httpClientTimeout = 30 * time.Second

	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
)

// Client executes authenticated calls against one vendor API and normalizes
// the outcome: a non-2xx response becomes a vendor-error carrying the body
// verbatim, a deadline becomes a timeout-error.
type Client struct {
	baseURL    string
	authorizer Authorizer
}

func New(baseURL string, authorizer Authorizer) *Client {
	return &Client{
		baseURL:    baseURL,
		authorizer: authorizer,
	}
}

func (cl *Client) Execute(c context.Context, method string, path string, contentType string, body []byte, params url.Values) (int, []byte, error) {
	token, err := cl.authorizer.Authenticate(c)
	if err != nil {
		return 0, []byte{}, err
	}

	fullURL := cl.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(c, method, fullURL, reader)
	if err != nil {
		return 0, []byte{}, fmt.Errorf("error creating http request for %s %s: %s", method, fullURL, err)
	}

	if contentType == "" {
		contentType = ContentTypeJSON
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpClient := &http.Client{
		Timeout: httpClientTimeout,
	}
	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return 0, []byte{}, myerrors.NewTimeoutError(fmt.Errorf("timeout calling %s %s: %s", method, fullURL, err))
		}
		return 0, []byte{}, fmt.Errorf("error calling %s %s: %s", method, fullURL, err)
	}
	defer httpResp.Body.Close()

	log.Printf("HTTP call to vendor: %s %s -> %d", method, fullURL, httpResp.StatusCode)

	respPayload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, []byte{}, fmt.Errorf("error reading response %s %s: %s", method, fullURL, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return httpResp.StatusCode, respPayload, myerrors.NewVendorError(
			fmt.Errorf("%s %s returned http %d", method, path, httpResp.StatusCode), respPayload)
	}

	return httpResp.StatusCode, respPayload, nil
}

// postBasicAuthForm posts a form-encoded body with basic auth, used for
// client-credentials token fetches.
func postBasicAuthForm(c context.Context, fullURL string, username string, password string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(c, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return 0, []byte{}, fmt.Errorf("error creating http request for POST %s: %s", fullURL, err)
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(username, password)

	httpClient := &http.Client{
		Timeout: httpClientTimeout,
	}
	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return 0, []byte{}, myerrors.NewTimeoutError(fmt.Errorf("timeout calling POST %s: %s", fullURL, err))
		}
		return 0, []byte{}, fmt.Errorf("error calling POST %s: %s", fullURL, err)
	}
	defer httpResp.Body.Close()

	respPayload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, []byte{}, fmt.Errorf("error reading response POST %s: %s", fullURL, err)
	}

	return httpResp.StatusCode, respPayload, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
