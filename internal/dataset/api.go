package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/database"
)

// apiQueryConfig is the query_config payload of an api dataset. Either a
// registered API reference or a source-relative endpoint must be present.
type apiQueryConfig struct {
	APIUUID  string            `json:"api_uuid"`
	APICode  string            `json:"api_code"`
	Endpoint string            `json:"endpoint"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers"`
	Params   map[string]string `json:"params"`
	Body     json.RawMessage   `json:"body"`
}

// apiExecutor performs outbound HTTP calls for api datasets.
type apiExecutor struct {
	client *http.Client
}

func newAPIExecutor(timeout time.Duration) *apiExecutor {
	return &apiExecutor{client: &http.Client{Timeout: timeout}}
}

// execute resolves the target (registered API first, base_url fallback),
// performs the call, and pages the parsed rows.
func (e *apiExecutor) execute(tc *tenant.Context, ds *model.Dataset, source *model.DataSource, params map[string]interface{}, limit, offset int) *Result {
	var qc apiQueryConfig
	if err := json.Unmarshal(ds.QueryConfig, &qc); err != nil {
		return failure("invalid query_config: " + err.Error())
	}

	target, method, headers, defaults, err := e.resolveTarget(tc, &qc, source)
	if err != nil {
		return failure(errDetail(err))
	}
	if qc.Method != "" {
		method = qc.Method
	}
	if method == "" {
		method = http.MethodGet
	}

	query := url.Values{}
	for k, v := range defaults {
		query.Set(k, v)
	}
	for k, v := range qc.Params {
		query.Set(k, v)
	}
	for k, v := range params {
		query.Set(k, fmt.Sprintf("%v", v))
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	fullURL := target
	if encoded := query.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		fullURL = target + sep + encoded
	}

	var body io.Reader
	if len(qc.Body) > 0 {
		body = bytes.NewReader(qc.Body)
	}
	req, err := http.NewRequest(method, fullURL, body)
	if err != nil {
		return failure("invalid api request: " + err.Error())
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return failure("api request failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return failure("api returned status " + strconv.Itoa(resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure("failed to read api response: " + err.Error())
	}
	rows, err := extractRows(raw)
	if err != nil {
		return failure(err.Error())
	}
	page := sliceRows(rows, offset, limit)

	return &Result{Success: true, Data: page, Total: len(page), Columns: columnNames(page)}
}

// resolveTarget picks the call target: a registered, active API when
// referenced, otherwise the source's base_url plus the endpoint. Registered
// headers and params act as defaults under the dataset's own.
func (e *apiExecutor) resolveTarget(tc *tenant.Context, qc *apiQueryConfig, source *model.DataSource) (target, method string, headers, defaults map[string]string, err error) {
	headers = map[string]string{}
	defaults = map[string]string{}

	if qc.APIUUID != "" || qc.APICode != "" {
		var api model.API
		q := database.GetDB().Scopes(tenant.Scoped(tc)).Where("is_active = ?", true)
		if qc.APIUUID != "" {
			q = q.Where("uuid = ?", qc.APIUUID)
		} else {
			q = q.Where("code = ?", qc.APICode)
		}
		if err := q.First(&api).Error; err != nil {
			return "", "", nil, nil, fmt.Errorf("registered api not found or inactive")
		}
		decodeStringMap(api.Headers, headers)
		decodeStringMap(api.Params, defaults)
		mergeStringMap(headers, qc.Headers)
		return api.URL, api.Method, headers, defaults, nil
	}

	if source.BaseURL == "" {
		return "", "", nil, nil, fmt.Errorf("data source has no base_url")
	}
	decodeStringMap(source.Headers, headers)
	mergeStringMap(headers, qc.Headers)
	return strings.TrimRight(source.BaseURL, "/") + "/" + strings.TrimLeft(qc.Endpoint, "/"), "", headers, defaults, nil
}

// testCall performs a registered API's call with merged params and reports
// status plus elapsed milliseconds.
func (e *apiExecutor) testCall(api *model.API, params map[string]string) *APITestResult {
	headers := map[string]string{}
	query := url.Values{}
	decodeStringMap(api.Headers, headers)

	defaults := map[string]string{}
	decodeStringMap(api.Params, defaults)
	for k, v := range defaults {
		query.Set(k, v)
	}
	for k, v := range params {
		query.Set(k, v)
	}

	target := api.URL
	if encoded := query.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target = target + sep + encoded
	}

	method := api.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return &APITestResult{Error: "invalid api request: " + err.Error()}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &APITestResult{ElapsedTime: elapsed, Error: "api request failed: " + err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return &APITestResult{
		Success:     resp.StatusCode < http.StatusBadRequest,
		StatusCode:  resp.StatusCode,
		ElapsedTime: elapsed,
	}
}

// probe checks an api base url for liveness; any completed response counts.
func (e *apiExecutor) probe(baseURL string) bool {
	if baseURL == "" {
		return false
	}
	resp, err := e.client.Get(baseURL)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func decodeStringMap(raw []byte, into map[string]string) {
	if len(raw) == 0 {
		return
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	for k, v := range m {
		into[k] = v
	}
}

func mergeStringMap(into map[string]string, from map[string]string) {
	for k, v := range from {
		into[k] = v
	}
}

// extractRows pulls the tabular payload out of a JSON response by shape:
// an object carrying "data" or "items", or a bare list.
func extractRows(raw []byte) ([]map[string]interface{}, error) {
	var asList []map[string]interface{}
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil, fmt.Errorf("api response is not json")
	}
	for _, key := range []string{"data", "items"} {
		inner, ok := asObject[key]
		if !ok {
			continue
		}
		var rows []map[string]interface{}
		if err := json.Unmarshal(inner, &rows); err == nil {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("api response has no tabular payload")
}

// columnNames lists the first row's keys in sorted order so repeated
// executions of the same dataset return a stable column list.
func columnNames(rows []map[string]interface{}) []string {
	cols := []string{}
	if len(rows) == 0 {
		return cols
	}
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// sliceRows pages rows in memory for upstreams that ignore limit/offset.
func sliceRows(rows []map[string]interface{}, offset, limit int) []map[string]interface{} {
	if offset >= len(rows) {
		return []map[string]interface{}{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
