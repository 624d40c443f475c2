package emulator

import (
	"fmt"

	"main/internal/bus"
	"main/internal/schema"
)

// Message bus endpoints and topic patterns used by the emulator.
const (
	EndpointExecute     = "OrderEmulator.execute"
	EndpointQuoteTick   = "OrderEmulator.onQuoteTick"
	EndpointTradeTick   = "OrderEmulator.onTradeTick"
	EndpointRiskExecute = "RiskEngine.execute"
	EndpointRiskProcess = "RiskEngine.process"
	EndpointExecExecute = "ExecEngine.execute"
	EndpointExecProcess = "ExecEngine.process"
)

// TopicOrderEvents returns the order-event topic for one strategy.
func TopicOrderEvents(strategyID schema.StrategyID) string {
	return fmt.Sprintf("events.order.%d", strategyID)
}

// TopicPositionEvents returns the position-event topic for one strategy.
func TopicPositionEvents(strategyID schema.StrategyID) string {
	return fmt.Sprintf("events.position.%d", strategyID)
}

// EndpointExecAlgorithm returns the execute endpoint for one algorithm.
func EndpointExecAlgorithm(id schema.ExecAlgorithmID) string {
	return fmt.Sprintf("ExecAlgorithm-%d.execute", id)
}

// egress is the typed send surface toward downstream engines. It keeps the
// emulator free of raw endpoint strings at call sites.
type egress struct {
	bus *bus.Bus
}

func (e egress) submitToRisk(cmd *schema.SubmitOrder) {
	e.bus.Send(EndpointRiskExecute, cmd)
}

func (e egress) notifyRisk(evt schema.OrderEvent) {
	e.bus.Send(EndpointRiskProcess, evt)
}

func (e egress) submitToExec(cmd *schema.SubmitOrder) {
	e.bus.Send(EndpointExecExecute, cmd)
}

func (e egress) cancelToExec(cmd *schema.CancelOrder) {
	e.bus.Send(EndpointExecExecute, cmd)
}

func (e egress) notifyExec(evt schema.OrderEvent) {
	e.bus.Send(EndpointExecProcess, evt)
}

func (e egress) submitToAlgorithm(id schema.ExecAlgorithmID, cmd *schema.SubmitOrder) {
	e.bus.Send(EndpointExecAlgorithm(id), cmd)
}

func (e egress) publishOrderEvent(evt schema.OrderEvent) {
	e.bus.Publish(TopicOrderEvents(evt.Base().StrategyID), evt)
}
