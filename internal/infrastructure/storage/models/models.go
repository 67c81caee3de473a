// Package models holds the Bun table models and their conversions to
// the public domain models.
package models

import (
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// ActionModel represents one row of the append-only command journal.
type ActionModel struct {
	bun.BaseModel `bun:"table:ac_actions,alias:a"`

	ID                 int64       `bun:"id,pk,autoincrement" json:"id"`
	ActionTimestamp    int64       `bun:"action_timestamp,notnull" json:"action_timestamp"`
	DeviceIdentifier   string      `bun:"device_identifier,notnull" json:"device_identifier"`
	ActionType         string      `bun:"action_type,notnull" json:"action_type"`
	Mode               *int        `bun:"mode" json:"mode,omitempty"`
	FanSpeed           *int        `bun:"fan_speed" json:"fan_speed,omitempty"`
	RequestTemperature *float64    `bun:"request_temperature" json:"request_temperature,omitempty"`
	Swing              *int        `bun:"swing" json:"swing,omitempty"`
	MeasuredTemp       *float64    `bun:"measured_temperature" json:"measured_temperature,omitempty"`
	MeasuredNetPowerW  *int        `bun:"measured_net_power_watt" json:"measured_net_power_watt,omitempty"`
	MeasuredSolarW     *int        `bun:"measured_solar_production_watt" json:"measured_solar_production_watt,omitempty"`
	IsHumanHome        *bool       `bun:"is_human_home" json:"is_human_home,omitempty"`
	CauseID            int         `bun:"cause_id,notnull" json:"cause_id"`
	IsDegraded         bool        `bun:"is_degraded,notnull,default:0" json:"is_degraded"`
}

// ActionModelFromDomain converts a domain record to its table model.
func ActionModelFromDomain(r *models.ActionRecord) *ActionModel {
	m := &ActionModel{
		ActionTimestamp:    r.TsUnix,
		DeviceIdentifier:   r.Device,
		ActionType:         string(r.ActionType),
		FanSpeed:           r.FanSpeed,
		RequestTemperature: r.RequestedTemp,
		Swing:              r.Swing,
		MeasuredTemp:       r.MeasuredIndoorTemp,
		MeasuredNetPowerW:  r.MeasuredNetPowerW,
		MeasuredSolarW:     r.MeasuredSolarW,
		IsHumanHome:        r.UserHome,
		CauseID:            r.CauseID,
		IsDegraded:         r.Degraded,
	}
	if r.Mode != nil {
		mode := int(*r.Mode)
		m.Mode = &mode
	}
	return m
}

// ToDomain converts an action row to the domain record.
func (m *ActionModel) ToDomain() *models.ActionRecord {
	r := &models.ActionRecord{
		TsUnix:             m.ActionTimestamp,
		Device:             m.DeviceIdentifier,
		ActionType:         models.ActionType(m.ActionType),
		FanSpeed:           m.FanSpeed,
		RequestedTemp:      m.RequestTemperature,
		Swing:              m.Swing,
		MeasuredIndoorTemp: m.MeasuredTemp,
		MeasuredNetPowerW:  m.MeasuredNetPowerW,
		MeasuredSolarW:     m.MeasuredSolarW,
		UserHome:           m.IsHumanHome,
		CauseID:            m.CauseID,
		Degraded:           m.IsDegraded,
	}
	if m.Mode != nil {
		mode := models.AcMode(*m.Mode)
		r.Mode = &mode
	}
	return r
}

// CauseReasonModel represents a row of the cause_reasons table.
type CauseReasonModel struct {
	bun.BaseModel `bun:"table:cause_reasons,alias:cr"`

	ID          int    `bun:"id,pk" json:"id"`
	Label       string `bun:"label,notnull" json:"label"`
	Description string `bun:"description,notnull,default:''" json:"description"`
	IsHidden    bool   `bun:"is_hidden,notnull,default:0" json:"is_hidden"`
	IsEditable  bool   `bun:"is_editable,notnull,default:1" json:"is_editable"`
}

// ToDomain converts a cause row to the domain model.
func (m *CauseReasonModel) ToDomain() models.CauseReason {
	return models.CauseReason{
		ID:          m.ID,
		Label:       m.Label,
		Description: m.Description,
		IsHidden:    m.IsHidden,
		IsEditable:  m.IsEditable,
	}
}

// CauseReasonModelFromDomain converts a domain cause to its table model.
func CauseReasonModelFromDomain(c models.CauseReason) *CauseReasonModel {
	return &CauseReasonModel{
		ID:          c.ID,
		Label:       c.Label,
		Description: c.Description,
		IsHidden:    c.IsHidden,
		IsEditable:  c.IsEditable,
	}
}

// NodesetModel stores one saved graph as a single JSON blob.
type NodesetModel struct {
	bun.BaseModel `bun:"table:nodesets,alias:n"`

	ID       string `bun:"id,pk" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	NodeJSON string `bun:"node_json,notnull" json:"node_json"`
}

// ToDomain decodes the stored JSON blob into a graph.
func (m *NodesetModel) ToDomain() (*models.Graph, error) {
	var graph models.Graph
	if err := json.Unmarshal([]byte(m.NodeJSON), &graph); err != nil {
		return nil, fmt.Errorf("nodeset %s holds invalid JSON: %w", m.ID, err)
	}
	graph.ID = m.ID
	graph.Name = m.Name
	return &graph, nil
}

// NodesetModelFromDomain encodes a graph into its table model.
func NodesetModelFromDomain(g *models.Graph) (*NodesetModel, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nodeset %s: %w", g.ID, err)
	}
	return &NodesetModel{
		ID:       g.ID,
		Name:     g.Name,
		NodeJSON: string(data),
	}, nil
}

// SettingModel is one key/value pair of the settings table.
type SettingModel struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	Key   string `bun:"setting_key,pk" json:"setting_key"`
	Value string `bun:"setting_value,notnull" json:"setting_value"`
}
