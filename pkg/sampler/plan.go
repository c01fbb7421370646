package sampler

import (
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"

	"github.com/HatiCode/attendbench/pkg/samples"
)

// Defaults applied to plan runs and command-line runs.
const (
	DefaultUserID = 100
	DefaultDays   = 30
	DefaultN      = 30
)

var timeNow = time.Now

// Plan is a YAML file listing runs to execute in order:
//
//	runs:
//	  - target: http://127.0.0.1:5001
//	    condition: C0
//	    size: 1k
//	    mode: initial
//	    n: 30
type Plan struct {
	Runs []PlanRun `yaml:"runs"`
}

// PlanRun is one entry of a Plan. Omitted fields take the package defaults;
// omitted dates resolve to the Days days ending today.
type PlanRun struct {
	Target    string `yaml:"target"`
	Condition string `yaml:"condition"`
	Size      string `yaml:"size"`
	Mode      string `yaml:"mode"`
	User      int64  `yaml:"user"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
	Days      int    `yaml:"days"`
	N         int    `yaml:"n"`
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(p.Runs) == 0 {
		return nil, errors.New("plan has no runs")
	}
	for i, run := range p.Runs {
		if run.Target == "" {
			return nil, fmt.Errorf("run[%d]: target is required", i)
		}
		if _, err := run.Spec(civil.DateOf(timeNow())); err != nil {
			return nil, fmt.Errorf("run[%d]: %w", i, err)
		}
	}
	return &p, nil
}

// Spec resolves the run against today.
func (p PlanRun) Spec(today civil.Date) (RunSpec, error) {
	spec := RunSpec{
		Condition: p.Condition,
		Size:      p.Size,
		Mode:      samples.Mode(p.Mode),
		UserID:    p.User,
		N:         p.N,
	}
	if spec.Mode == "" {
		spec.Mode = samples.ModeInitial
	}
	if spec.UserID == 0 {
		spec.UserID = DefaultUserID
	}
	if spec.N == 0 {
		spec.N = DefaultN
	}

	start, end, err := ResolveWindow(p.Start, p.End, p.Days, today)
	if err != nil {
		return RunSpec{}, err
	}
	spec.Start, spec.End = start, end

	return spec, spec.Validate()
}

// ResolveWindow parses explicit dates and fills omitted ones: end defaults to
// today and start to days before end.
func ResolveWindow(startStr, endStr string, days int, today civil.Date) (civil.Date, civil.Date, error) {
	if days <= 0 {
		days = DefaultDays
	}

	end := today
	if endStr != "" {
		d, err := civil.ParseDate(endStr)
		if err != nil {
			return civil.Date{}, civil.Date{}, fmt.Errorf("end date: %w", err)
		}
		end = d
	}

	start := end.AddDays(-days)
	if startStr != "" {
		d, err := civil.ParseDate(startStr)
		if err != nil {
			return civil.Date{}, civil.Date{}, fmt.Errorf("start date: %w", err)
		}
		start = d
	}

	return start, end, nil
}
