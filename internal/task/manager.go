package task

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manager loads and parses Task definitions.
type Manager struct {
	logger *zap.Logger
}

// TaskConfig represents the structure of tasks YAML file
type TaskConfig struct {
	Tasks []struct {
		TaskName        string  `yaml:"task_name"`
		Wallet          string  `yaml:"wallet"`
		Operation       string  `yaml:"operation"`
		Amount          string  `yaml:"amount"`
		SlippagePercent float64 `yaml:"slippage_percent"`
		Token           string  `yaml:"token"`
		Name            string  `yaml:"name"`
		Symbol          string  `yaml:"symbol"`
		Cores           []uint8 `yaml:"cores"`
		Description     string  `yaml:"description"`
		Repeat          int     `yaml:"repeat"`
	} `yaml:"tasks"`
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

func parseOperation(s string) (OperationType, error) {
	op := OperationType(s)
	switch op {
	case OperationLaunch, OperationBuy, OperationSell, OperationPropose:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

func clamp(val, min, max, def float64) float64 {
	if val < min || val > max {
		return def
	}
	return val
}

// LoadTasksYAML reads tasks from YAML file
func (m *Manager) LoadTasksYAML(path string) ([]*Task, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for tasks file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.ParseTasks(data)
}

// ParseTasks decodes a tasks document. Invalid tasks are logged and skipped.
func (m *Manager) ParseTasks(data []byte) ([]*Task, error) {
	var config TaskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in configuration")
	}

	now := time.Now()
	tasks := make([]*Task, 0, len(config.Tasks))
	for i, taskData := range config.Tasks {
		op, err := parseOperation(taskData.Operation)
		if err != nil {
			m.logger.Warn("Skipping invalid task", zap.String("task_name", taskData.TaskName), zap.Error(err))
			continue
		}

		repeat := taskData.Repeat
		if repeat <= 0 {
			repeat = 1
		}

		task := &Task{
			ID:              i,
			TaskName:        taskData.TaskName,
			WalletName:      taskData.Wallet,
			Operation:       op,
			Amount:          taskData.Amount,
			SlippagePercent: clamp(taskData.SlippagePercent, 0.5, 100.0, 1.0),
			Token:           taskData.Token,
			Name:            taskData.Name,
			Symbol:          taskData.Symbol,
			Cores:           taskData.Cores,
			Description:     taskData.Description,
			Repeat:          repeat,
			CreatedAt:       now,
		}

		if err := task.Validate(); err != nil {
			m.logger.Warn("Skipping task with invalid fields",
				zap.String("task_name", task.TaskName),
				zap.String("operation", string(task.Operation)),
				zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no valid tasks loaded")
	}

	m.logger.Info("Loaded tasks", zap.Int("count", len(tasks)))
	return tasks, nil
}

// LoadTasks is a wrapper that delegates to LoadTasksYAML
func (m *Manager) LoadTasks(path string) ([]*Task, error) {
	return m.LoadTasksYAML(path)
}
