package runner

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// Step actions
const (
	ActionPlace   = "place"
	ActionCheck   = "check"
	ActionRelease = "release"
	ActionDeliver = "deliver"
	ActionRead    = "read"
)

// InventorySpec is the inventory a suite starts from.
type InventorySpec struct {
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Container string `json:"container,omitempty"`
}

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name      string        `json:"name"`
	Inventory InventorySpec `json:"inventory,omitempty"` // Used for regular tests
	Steps     []TestStep    `json:"steps,omitempty"`     // Used for regular tests
	Cases     []string      `json:"cases,omitempty"`     // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single request against the inventory and its expected
// outcome. Item labels a placed item so later release steps can name it.
type TestStep struct {
	Name         string          `json:"name,omitempty"`
	Action       string          `json:"action"`
	Item         string          `json:"item,omitempty"`
	Shape        string          `json:"shape,omitempty"`
	InlineShape  *shape.Mask     `json:"inline_shape,omitempty"`
	Anchor       shape.Point     `json:"anchor"`
	Origin       *shape.Point    `json:"origin,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Expectations Expectations    `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Status defaults to the action's success code
	Status *int `json:"status,omitempty"`

	// Placement results
	Fits    *bool        `json:"fits,omitempty"`    // check only
	Indices []int        `json:"indices,omitempty"` // order independent
	Origin  *shape.Point `json:"origin,omitempty"`  // place only

	// Inventory state, read after the step
	FreeCount *int  `json:"free_count,omitempty"`
	ItemCount *int  `json:"item_count,omitempty"`
	Visual    []int `json:"visual,omitempty"`
}

// checksState reports whether the step needs the inventory read back.
func (e Expectations) checksState() bool {
	return e.FreeCount != nil || e.ItemCount != nil || e.Visual != nil
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	IsWait   bool // True if the step waited on a queued delivery
}

// TestJob represents a test suite to be executed by a worker
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	Inventory uuid.UUID // ID of the inventory used for this test
}
