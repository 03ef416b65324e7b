package measure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client is a mutual-TLS HTTP client for the §4.H operations, the Go
// counterpart of the original RemoteEvaluator's rpyc.ssl_connect.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a Client trusting and presenting m's certificate
// material against a server at baseURL (e.g. "https://host:port").
func NewClient(baseURL string, m Material) (*Client, error) {
	tlsConfig, err := ClientTLSConfig(m)
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}, nil
}

func (c *Client) post(ctx context.Context, op string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("measure: encoding %s request: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+op, &buf)
	if err != nil {
		return fmt.Errorf("measure: building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("measure: %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

// GetInsns calls get_insns.
func (c *Client) GetInsns(ctx context.Context) ([]string, error) {
	var out struct {
		Insns []string `json:"insns"`
	}
	if err := c.post(ctx, "get_insns", nil, &out); err != nil {
		return nil, err
	}
	return out.Insns, nil
}

// GetNumPorts calls get_num_ports.
func (c *Client) GetNumPorts(ctx context.Context) (int, error) {
	var out struct {
		NumPorts int `json:"num_ports"`
	}
	if err := c.post(ctx, "get_num_ports", nil, &out); err != nil {
		return 0, err
	}
	return out.NumPorts, nil
}

// GetDescription calls get_description.
func (c *Client) GetDescription(ctx context.Context) (string, error) {
	var out struct {
		Description string `json:"description"`
	}
	if err := c.post(ctx, "get_description", nil, &out); err != nil {
		return "", err
	}
	return out.Description, nil
}

// RunExperiment calls run_experiment and returns the raw result dict; the
// client must be ready to see a nil "cycles" with an "error_cause" (§6).
func (c *Client) RunExperiment(ctx context.Context, req RunExperimentRequest) (map[string]any, error) {
	var out map[string]any
	if err := c.post(ctx, "run_experiment", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenCode calls gen_code.
func (c *Client) GenCode(ctx context.Context, req GenCodeRequest) (string, int, error) {
	var out struct {
		Code                 string `json:"code"`
		NumTestcaseInstances int    `json:"num_testcase_instances"`
		Error                string `json:"error"`
	}
	if err := c.post(ctx, "gen_code", req, &out); err != nil {
		return "", 0, err
	}
	if out.Error != "" {
		return "", 0, fmt.Errorf("measure: gen_code: %s", out.Error)
	}
	return out.Code, out.NumTestcaseInstances, nil
}
