package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// maxResponseSize bounds provider responses read into memory.
const maxResponseSize = 1 << 20

// do sends req and returns the decoded JSON body together with its raw
// bytes. Non-2xx responses become a *ProviderError carrying whatever error
// code the body declares.
func do(client *http.Client, provider string, req *http.Request) (fields, []byte, error) {
	body, err := send(client, provider, req)
	if err != nil {
		return nil, body, err
	}
	f, err := decodeFields(body)
	if err != nil {
		return nil, body, err
	}
	return f, body, nil
}

// send is do without decoding, for endpoints that answer with something
// other than a JSON object.
func send(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &ProviderError{Provider: provider, Status: resp.StatusCode, Code: strconv.Itoa(resp.StatusCode)}
		if f, derr := decodeFields(body); derr == nil {
			if c := f.str("error", "code", "errcode"); c != "" {
				perr.Code = c
			}
			perr.Message = f.str("error_description", "message", "msg", "errmsg")
		} else {
			perr.Message = truncate(string(body), 256)
		}
		return body, perr
	}
	return body, nil
}

func newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Join(ErrRequestFailed, err)
	}
	return req, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
