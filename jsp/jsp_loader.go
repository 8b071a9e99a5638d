// Package jsp reads JSPLIB job-shop instances and generates random ones.
package jsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"shopsched/model"
)

type WorkPair struct {
	Machine int
	Delay   int
}

type Instance struct {
	Name     string       `json:"name"`
	Jobs     int          `json:"jobs"`
	Machines int          `json:"machines"`
	Optimum  int          `json:"optimum"`
	Path     string       `json:"path"`
	Work     [][]WorkPair `json:"work"`
}

// LoadInstances reads the JSPLIB instances.json index under root and parses every
// instance file it lists.
func LoadInstances(root string) ([]*Instance, error) {
	fileBytes, err := os.ReadFile(filepath.Join(root, "instances.json"))
	if err != nil {
		return nil, err
	}
	var instances []*Instance
	if err := json.Unmarshal(fileBytes, &instances); err != nil {
		return nil, fmt.Errorf("instances.json: %w", err)
	}
	for _, instance := range instances {
		file, err := os.Open(filepath.Join(root, instance.Path))
		if err != nil {
			return nil, err
		}
		parsed, err := Parse(file)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", instance.Path, err)
		}
		instance.Work = parsed.Work
		if instance.Jobs == 0 {
			instance.Jobs, instance.Machines = parsed.Jobs, parsed.Machines
		}
	}
	return instances, nil
}

// Parse reads the JSPLIB text format: '#' comment lines, a "jobs machines" header, then one
// line per job of "machine delay" pairs with machines numbered from 0.
func Parse(r io.Reader) (*Instance, error) {
	instance := &Instance{}
	reader := bufio.NewReader(r)
	header := false
	for n := 1; ; n++ {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] != '#' {
			splits := bytes.Fields(line)
			if !header {
				if len(splits) != 2 {
					return nil, fmt.Errorf("line %d: want \"jobs machines\" header", n)
				}
				jobs, err1 := strconv.Atoi(string(splits[0]))
				machines, err2 := strconv.Atoi(string(splits[1]))
				if err1 != nil || err2 != nil || jobs <= 0 || machines <= 0 {
					return nil, fmt.Errorf("line %d: bad header %q", n, line)
				}
				instance.Jobs, instance.Machines = jobs, machines
				header = true
			} else if len(instance.Work) < instance.Jobs {
				if len(splits) != instance.Machines*2 {
					return nil, fmt.Errorf("line %d: want %d fields, got %d", n, instance.Machines*2, len(splits))
				}
				work := make([]WorkPair, 0, instance.Machines)
				for j := 0; j < len(splits); j += 2 {
					machine, err1 := strconv.Atoi(string(splits[j]))
					delay, err2 := strconv.Atoi(string(splits[j+1]))
					if err1 != nil || err2 != nil || machine < 0 || machine >= instance.Machines || delay <= 0 {
						return nil, fmt.Errorf("line %d: bad pair %q %q", n, splits[j], splits[j+1])
					}
					work = append(work, WorkPair{Machine: machine, Delay: delay})
				}
				instance.Work = append(instance.Work, work)
			}
		}
		if err == io.EOF {
			break
		}
	}
	if !header {
		return nil, fmt.Errorf("missing header")
	}
	if len(instance.Work) != instance.Jobs {
		return nil, fmt.Errorf("want %d jobs, got %d", instance.Jobs, len(instance.Work))
	}
	return instance, nil
}

// Random builds a job shop where every job visits every machine once in shuffled order
// with delays in [20, 220).
func Random(jobs, machines int, rng *rand.Rand) *Instance {
	work := make([][]WorkPair, jobs)
	for j := 0; j < jobs; j++ {
		row := make([]WorkPair, machines)
		for m := 0; m < machines; m++ {
			row[m] = WorkPair{m, rng.Intn(200) + 20}
		}
		rng.Shuffle(len(row), func(i, j int) {
			row[i], row[j] = row[j], row[i]
		})
		work[j] = row
	}
	return &Instance{
		Name:     "Rand",
		Jobs:     jobs,
		Machines: machines,
		Work:     work,
	}
}

// Problem converts the instance: one single-unit resource per machine, one task per job,
// and a chain of single-mode activities per task.
func (instance *Instance) Problem() (*model.Problem, error) {
	p := model.NewProblem()
	for m := 0; m < instance.Machines; m++ {
		p.AddResource(model.Resource{Name: "M" + strconv.Itoa(m), Capacity: 1})
	}
	for j, row := range instance.Work {
		task := p.AddTask(model.Task{Name: "J" + strconv.Itoa(j)})
		acts := make([]model.Activity, len(row))
		for o, pair := range row {
			acts[o] = model.Activity{
				Name:  fmt.Sprintf("J%d.%d", j, o),
				Modes: []model.Mode{{Resource: model.ResourceID(pair.Machine), Duration: model.Time(pair.Delay)}},
			}
		}
		p.Chain(task, acts...)
	}
	if err := p.Finalize(); err != nil {
		return nil, fmt.Errorf("instance %s: %w", instance.Name, err)
	}
	return p, nil
}
