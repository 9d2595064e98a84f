package scorer

import (
	"github.com/sells-group/practice-metrics/internal/model"
)

// ValidTasks splits tasks into those satisfying model.Task.Validate and the
// validation errors of the rest.
func ValidTasks(tasks []model.Task) ([]model.Task, []error) {
	valid := make([]model.Task, 0, len(tasks))
	var rejected []error
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			rejected = append(rejected, err)
			continue
		}
		valid = append(valid, t)
	}
	return valid, rejected
}

// ComputeProgress derives the weighted completion snapshot of a matter from
// its tasks. Invalid tasks are excluded. Every stage appears in ByStage,
// with 0 for stages that carry no weight.
func ComputeProgress(tasks []model.Task) model.Progress {
	valid, _ := ValidTasks(tasks)

	stageTotal := make(map[model.Stage]float64, len(model.Stages))
	stageDone := make(map[model.Stage]float64, len(model.Stages))

	var p model.Progress
	for _, t := range valid {
		p.TotalTasks++
		p.TotalWeight += t.Weight
		stageTotal[t.Stage] += t.Weight
		if t.IsCompleted() {
			p.CompletedTasks++
			p.CompletedWeight += t.Weight
			stageDone[t.Stage] += t.Weight
		}
	}

	p.Overall = percent(p.CompletedWeight, p.TotalWeight)
	p.ByStage = make(map[model.Stage]float64, len(model.Stages))
	for _, s := range model.Stages {
		p.ByStage[s] = percent(stageDone[s], stageTotal[s])
	}
	return p
}
