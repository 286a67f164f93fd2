package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/roach88/callscript/internal/model"
)

// DefaultAPIURL is the platform's management API root.
const DefaultAPIURL = "https://api.voximplant.com/platform_api"

// pageSize is the count requested from paginated list methods.
const pageSize = 1000

// errStopPaging ends paginate early without an error.
var errStopPaging = errors.New("stop paging")

// Options configures an HTTPClient.
type Options struct {
	BaseURL   string
	AccountID string
	APIKey    string
	Timeout   time.Duration
	Retries   int // retries for read-only calls; mutations are never retried
	Logger    *slog.Logger
}

// HTTPClient talks to the platform's form-encoded JSON API.
//
// Reads and writes use separate transports: reads go through a retrying
// client, writes through one with retries disabled so that a create is never
// sent twice after an ambiguous failure.
type HTTPClient struct {
	baseURL   string
	accountID string
	apiKey    string
	reads     *retryablehttp.Client
	writes    *retryablehttp.Client
}

// NewHTTPClient creates a client for the given account.
func NewHTTPClient(opts Options) *HTTPClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		accountID: opts.AccountID,
		apiKey:    opts.APIKey,
		reads:     newTransport(opts, opts.Retries),
		writes:    newTransport(opts, 0),
	}
}

func newTransport(opts Options, retries int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = opts.Timeout
	// Hand the last response to call so a 5xx becomes an *APIError.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		c.Logger = opts.Logger
	} else {
		c.Logger = nil
	}
	return c
}

// envelope is the common response shape of every API method.
type envelope struct {
	Result     json.RawMessage `json:"result"`
	TotalCount int             `json:"total_count"`
	Error      *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`

	ApplicationID int64 `json:"application_id"`
	RuleID        int64 `json:"rule_id"`
	ScenarioID    int64 `json:"scenario_id"`
}

type applicationInfo struct {
	ID   int64  `json:"application_id"`
	Name string `json:"application_name"`
}

type scenarioInfo struct {
	ID     int64  `json:"scenario_id"`
	Name   string `json:"scenario_name"`
	Script string `json:"scenario_script"`
}

type ruleInfo struct {
	ID        int64          `json:"rule_id"`
	Name      string         `json:"rule_name"`
	Pattern   string         `json:"rule_pattern"`
	Scenarios []scenarioInfo `json:"scenarios"`
}

func (c *HTTPClient) ListApplications(ctx context.Context) ([]model.Application, error) {
	var out []model.Application
	err := c.paginate(ctx, "GetApplications", url.Values{}, func(raw json.RawMessage) (int, error) {
		var page []applicationInfo
		if err := json.Unmarshal(raw, &page); err != nil {
			return 0, err
		}
		for _, a := range page {
			out = append(out, model.Application{Name: a.Name, ID: a.ID})
		}
		return len(page), nil
	})
	return out, err
}

func (c *HTTPClient) CreateApplication(ctx context.Context, name string) (int64, error) {
	env, err := c.call(ctx, c.writes, "AddApplication", url.Values{"application_name": {name}})
	if err != nil {
		return 0, err
	}
	return env.ApplicationID, nil
}

func (c *HTTPClient) ListRules(ctx context.Context, appID int64) ([]model.RemoteRule, error) {
	params := url.Values{
		"application_id": {formatID(appID)},
		"with_scenarios": {"true"},
	}
	var out []model.RemoteRule
	err := c.paginate(ctx, "GetRules", params, func(raw json.RawMessage) (int, error) {
		var page []ruleInfo
		if err := json.Unmarshal(raw, &page); err != nil {
			return 0, err
		}
		for _, r := range page {
			rule := model.RemoteRule{ID: r.ID, Name: r.Name, Pattern: r.Pattern}
			for _, s := range r.Scenarios {
				rule.Scenarios = append(rule.Scenarios, model.ScenarioRef{Name: s.Name, ID: s.ID})
			}
			out = append(out, rule)
		}
		return len(page), nil
	})
	return out, err
}

func (c *HTTPClient) CreateRule(ctx context.Context, appID int64, name string, scenarioIDs []int64, pattern string) (int64, error) {
	env, err := c.call(ctx, c.writes, "AddRule", url.Values{
		"application_id": {formatID(appID)},
		"rule_name":      {name},
		"rule_pattern":   {pattern},
		"scenario_id":    {JoinIDs(scenarioIDs)},
	})
	if err != nil {
		return 0, err
	}
	return env.RuleID, nil
}

func (c *HTTPClient) UpdateRulePattern(ctx context.Context, ruleID int64, pattern string) error {
	_, err := c.call(ctx, c.writes, "SetRuleInfo", url.Values{
		"rule_id":      {formatID(ruleID)},
		"rule_pattern": {pattern},
	})
	return err
}

func (c *HTTPClient) ReorderRules(ctx context.Context, appID int64, ruleIDs []int64) error {
	_, err := c.call(ctx, c.writes, "ReorderRules", url.Values{
		"application_id": {formatID(appID)},
		"rule_id":        {JoinIDs(ruleIDs)},
	})
	return err
}

func (c *HTTPClient) FindScenarioByName(ctx context.Context, name string, withContent bool) (*model.RemoteScenario, error) {
	params := url.Values{
		"scenario_name": {name},
		"with_script":   {strconv.FormatBool(withContent)},
	}
	var match *model.RemoteScenario
	// The name filter is a substring match on the platform side, so the
	// exact name may sit on a later page.
	err := c.paginate(ctx, "GetScenarios", params, func(raw json.RawMessage) (int, error) {
		var page []scenarioInfo
		if err := json.Unmarshal(raw, &page); err != nil {
			return 0, err
		}
		for _, s := range page {
			if s.Name == name {
				match = toRemoteScenario(s, withContent)
				return len(page), errStopPaging
			}
		}
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (c *HTTPClient) FindScenarioByID(ctx context.Context, id int64, withContent bool) (*model.RemoteScenario, error) {
	found, err := c.getScenarios(ctx, url.Values{
		"scenario_id": {formatID(id)},
		"with_script": {strconv.FormatBool(withContent)},
	})
	if err != nil {
		return nil, err
	}
	for _, s := range found {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, &APIError{Method: "GetScenarios", Code: CodeScenarioNotFound, Message: fmt.Sprintf("scenario %d not found", id)}
}

func (c *HTTPClient) getScenarios(ctx context.Context, params url.Values) ([]*model.RemoteScenario, error) {
	env, err := c.call(ctx, c.reads, "GetScenarios", params)
	if err != nil {
		return nil, err
	}
	var infos []scenarioInfo
	if err := decodeResult("GetScenarios", env.Result, &infos); err != nil {
		return nil, err
	}
	out := make([]*model.RemoteScenario, 0, len(infos))
	for _, s := range infos {
		out = append(out, toRemoteScenario(s, params.Get("with_script") == "true"))
	}
	return out, nil
}

func toRemoteScenario(s scenarioInfo, withContent bool) *model.RemoteScenario {
	rs := &model.RemoteScenario{ID: s.ID, Name: s.Name}
	if withContent {
		rs.Script = []byte(s.Script)
	}
	return rs
}

func (c *HTTPClient) CreateScenario(ctx context.Context, name string, script []byte) (int64, error) {
	env, err := c.call(ctx, c.writes, "AddScenario", url.Values{
		"scenario_name":   {name},
		"scenario_script": {string(script)},
	})
	if err != nil {
		return 0, err
	}
	return env.ScenarioID, nil
}

func (c *HTTPClient) UpdateScenario(ctx context.Context, id int64, name string, script []byte) error {
	_, err := c.call(ctx, c.writes, "SetScenarioInfo", url.Values{
		"scenario_id":     {formatID(id)},
		"scenario_name":   {name},
		"scenario_script": {string(script)},
	})
	return err
}

func (c *HTTPClient) BindScenarioToRule(ctx context.Context, ruleID, scenarioID int64, bind bool) error {
	_, err := c.call(ctx, c.writes, "BindScenario", url.Values{
		"rule_id":     {formatID(ruleID)},
		"scenario_id": {formatID(scenarioID)},
		"bind":        {strconv.FormatBool(bind)},
	})
	return err
}

// paginate calls a list method until total_count items have been consumed
// or consume returns errStopPaging.
func (c *HTTPClient) paginate(ctx context.Context, method string, params url.Values, consume func(json.RawMessage) (int, error)) error {
	offset := 0
	for {
		page := url.Values{}
		for k, v := range params {
			page[k] = v
		}
		page.Set("count", strconv.Itoa(pageSize))
		page.Set("offset", strconv.Itoa(offset))

		env, err := c.call(ctx, c.reads, method, page)
		if err != nil {
			return err
		}
		n, err := consume(env.Result)
		if errors.Is(err, errStopPaging) {
			return nil
		}
		if err != nil {
			return &APIError{Method: method, Code: CodeInternal, Message: fmt.Sprintf("decode result: %v", err)}
		}
		offset += n
		if n == 0 || offset >= env.TotalCount {
			return nil
		}
	}
}

// call posts one API method and decodes the envelope.
// Platform-level errors are returned as *APIError.
func (c *HTTPClient) call(ctx context.Context, hc *retryablehttp.Client, method string, params url.Values) (*envelope, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("account_id", c.accountID)
	form.Set("api_key", c.apiKey)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, []byte(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, doErr := hc.Do(req)
	if resp == nil {
		return nil, fmt.Errorf("%s: %w", method, doErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Method: method, Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if doErr != nil {
		return nil, fmt.Errorf("%s: %w", method, doErr)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &APIError{Method: method, Code: CodeInternal, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if env.Error != nil {
		return nil, &APIError{Method: method, Code: env.Error.Code, Message: env.Error.Msg}
	}
	return &env, nil
}

func decodeResult(method string, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &APIError{Method: method, Code: CodeInternal, Message: fmt.Sprintf("decode result: %v", err)}
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// JoinIDs renders ids in the platform's list syntax ("1;2;3").
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = formatID(id)
	}
	return strings.Join(parts, ";")
}
