package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds the state of one scenario against a running menuboard.
type TestContext struct {
	BaseURL    string
	HTTPClient *http.Client

	LastResponse *http.Response
	LastBody     []byte
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 40 * time.Second},
	}
}

func (tc *TestContext) Reset() {
	tc.LastResponse = nil
	tc.LastBody = nil
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	return tc.do(http.MethodPost, path, reader)
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.LastResponse = resp
	tc.LastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

// GetResponseField walks a dotted path ("projection.Burgers") through the
// last JSON body.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal(tc.LastBody, &data); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range strings.Split(field, ".") {
		obj, ok := data.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, key)
		}
		data, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return data, nil
}
