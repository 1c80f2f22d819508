package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/internal/handlers"
	"github.com/jwebster45206/inventory-engine/internal/inventory"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running inventory API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration // bounds waits on queued deliveries
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger(format, args...)
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite creates a fresh inventory and executes the suite's steps against it
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	var created inventory.View
	status, body, err := r.do(ctx, http.MethodPost, "/v1/inventory", inventory.CreateRequest{
		Width:     suite.Inventory.Width,
		Height:    suite.Inventory.Height,
		Container: suite.Inventory.Container,
	}, &created)
	if err == nil && status != http.StatusCreated {
		err = fmt.Errorf("create returned %d: %s", status, body)
	}
	if err != nil {
		result.Error = fmt.Errorf("failed to create inventory: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Inventory = created.ID

	// labels maps step item names to the IDs the API assigned
	labels := make(map[string]uuid.UUID)

	for i, step := range suite.Steps {
		r.logf("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, created.ID, step, labels)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.logf("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.logf("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) runStep(ctx context.Context, id uuid.UUID, step TestStep, labels map[string]uuid.UUID) TestResult {
	start := time.Now()
	res := TestResult{StepName: step.Name}

	var err error
	switch step.Action {
	case ActionPlace:
		err = r.place(ctx, id, step, labels)
	case ActionCheck:
		err = r.check(ctx, id, step)
	case ActionRelease:
		err = r.release(ctx, id, step, labels)
	case ActionDeliver:
		res.IsWait = step.Expectations.ItemCount != nil
		err = r.deliver(ctx, id, step)
	case ActionRead:
		err = r.expectState(ctx, id, step.Expectations)
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}

	// deliver compares state while it waits
	if err == nil && step.Action != ActionRead && step.Action != ActionDeliver && step.Expectations.checksState() {
		err = r.expectState(ctx, id, step.Expectations)
	}

	res.Error = err
	res.Success = err == nil
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) place(ctx context.Context, id uuid.UUID, step TestStep, labels map[string]uuid.UUID) error {
	var item inventory.ItemView
	status, body, err := r.do(ctx, http.MethodPost, inventoryPath(id, "items"), inventory.PlaceRequest{
		ShapeID: step.Shape,
		Shape:   step.InlineShape,
		Anchor:  step.Anchor,
		Origin:  step.Origin,
		Payload: step.Payload,
	}, &item)
	if err != nil {
		return err
	}
	if err := expectStatus(step.Expectations, http.StatusCreated, status, body); err != nil || status != http.StatusCreated {
		return err
	}

	if step.Item != "" {
		labels[step.Item] = item.ID
	}
	if step.Expectations.Origin != nil && *step.Expectations.Origin != item.Origin {
		return fmt.Errorf("origin: expected %v, got %v", *step.Expectations.Origin, item.Origin)
	}
	return expectIndices(step.Expectations.Indices, item.Indices)
}

func (r *Runner) check(ctx context.Context, id uuid.UUID, step TestStep) error {
	req := inventory.CheckRequest{
		ShapeID: step.Shape,
		Shape:   step.InlineShape,
		Anchor:  step.Anchor,
	}
	if step.Origin != nil {
		req.Origin = *step.Origin
	}

	var res inventory.CheckResult
	status, body, err := r.do(ctx, http.MethodPost, inventoryPath(id, "check"), req, &res)
	if err != nil {
		return err
	}
	if err := expectStatus(step.Expectations, http.StatusOK, status, body); err != nil || status != http.StatusOK {
		return err
	}

	if step.Expectations.Fits != nil && *step.Expectations.Fits != res.Fits {
		return fmt.Errorf("fits: expected %v, got %v", *step.Expectations.Fits, res.Fits)
	}
	return expectIndices(step.Expectations.Indices, res.Indices)
}

func (r *Runner) release(ctx context.Context, id uuid.UUID, step TestStep, labels map[string]uuid.UUID) error {
	itemID, ok := labels[step.Item]
	if !ok {
		// unknown labels release a random ID, which the API must reject
		itemID = uuid.New()
	}

	var res handlers.ReleaseResponse
	status, body, err := r.do(ctx, http.MethodDelete, inventoryPath(id, "items", itemID.String()), nil, &res)
	if err != nil {
		return err
	}
	if err := expectStatus(step.Expectations, http.StatusOK, status, body); err != nil || status != http.StatusOK {
		return err
	}
	return expectIndices(step.Expectations.Indices, res.Indices)
}

func (r *Runner) deliver(ctx context.Context, id uuid.UUID, step TestStep) error {
	var res handlers.DeliveryResponse
	status, body, err := r.do(ctx, http.MethodPost, inventoryPath(id, "deliveries"), inventory.PlaceRequest{
		ShapeID: step.Shape,
		Shape:   step.InlineShape,
		Anchor:  step.Anchor,
		Origin:  step.Origin,
		Payload: step.Payload,
	}, &res)
	if err != nil {
		return err
	}
	if err := expectStatus(step.Expectations, http.StatusAccepted, status, body); err != nil || status != http.StatusAccepted {
		return err
	}
	if res.RequestID == "" {
		return fmt.Errorf("delivery was accepted without a request_id")
	}
	if !step.Expectations.checksState() {
		return nil
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DeliveryTimeout
	}
	return WaitForState(ctx, func(ctx context.Context) error {
		return r.expectState(ctx, id, step.Expectations)
	}, timeout)
}

// expectState reads the inventory and compares it to the state expectations
func (r *Runner) expectState(ctx context.Context, id uuid.UUID, exp Expectations) error {
	v, err := r.GetInventory(ctx, id)
	if err != nil {
		return err
	}
	if exp.FreeCount != nil && *exp.FreeCount != v.FreeCount {
		return fmt.Errorf("free_count: expected %d, got %d", *exp.FreeCount, v.FreeCount)
	}
	if exp.ItemCount != nil && *exp.ItemCount != len(v.Items) {
		return fmt.Errorf("item_count: expected %d, got %d", *exp.ItemCount, len(v.Items))
	}
	if exp.Visual != nil && !slices.Equal(exp.Visual, v.Visual) {
		return fmt.Errorf("visual: expected %v, got %v", exp.Visual, v.Visual)
	}
	return nil
}

// GetInventory reads the current state of an inventory
func (r *Runner) GetInventory(ctx context.Context, id uuid.UUID) (*inventory.View, error) {
	var v inventory.View
	status, body, err := r.do(ctx, http.MethodGet, inventoryPath(id), nil, &v)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("read returned %d: %s", status, body)
	}
	return &v, nil
}

// do sends a JSON request and decodes 2xx responses into out. The raw body is
// returned for error messages.
func (r *Runner) do(ctx context.Context, method, path string, in, out interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, body, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}

func inventoryPath(id uuid.UUID, parts ...string) string {
	return "/v1/inventory/" + strings.Join(append([]string{id.String()}, parts...), "/")
}

func expectStatus(exp Expectations, success, got int, body []byte) error {
	want := success
	if exp.Status != nil {
		want = *exp.Status
	}
	if got != want {
		return fmt.Errorf("status: expected %d, got %d: %s", want, got, strings.TrimSpace(string(body)))
	}
	return nil
}

// expectIndices compares index sets ignoring order. A nil expectation is
// not checked.
func expectIndices(want, got []int) error {
	if want == nil {
		return nil
	}
	w := slices.Clone(want)
	g := slices.Clone(got)
	slices.Sort(w)
	slices.Sort(g)
	if !slices.Equal(w, g) {
		return fmt.Errorf("indices: expected %v, got %v", want, got)
	}
	return nil
}
