package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/armctl/pkg/config"
	"github.com/gwillem/armctl/pkg/robot"
)

type JointsCommand struct{}

func (c *JointsCommand) Execute(args []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	fmt.Println(jointTable(robot.DefaultRegistry(), cfg.Transport.Servo.Calibration))
	fmt.Println()
	fmt.Println("Poses: " + strings.Join(robot.PoseNames(), ", "))
	return nil
}

// jointTable renders the controlled joints with their bus index and, when
// calibrated, the serial bus servo ID.
func jointTable(reg *robot.Registry, cal robot.Calibration) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, reg.Len())
	for _, j := range reg.Controlled() {
		servo := "-"
		if sc, ok := cal[j.Name]; ok {
			servo = strconv.Itoa(sc.ID)
		}
		rows = append(rows, []string{j.Name, strconv.Itoa(int(j.Index)), servo})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers("Joint", "Index", "Servo").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return nameStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}
