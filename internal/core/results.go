package core

import (
	"gridadmin/internal/cluster"
	"gridadmin/internal/command"
	"gridadmin/internal/function"
)

// MemberRow — строка агрегированного ответа для одного конверта.
type MemberRow struct {
	Member  string   `json:"member"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Detail  string   `json:"detail,omitempty"`
	Values  []string `json:"values,omitempty"`
}

// RowFromResult переводит конверт результата в строку ответа.
func RowFromResult(r function.Result) MemberRow {
	row := MemberRow{Member: r.MemberID(), Status: StatusOK, Message: r.Message(), Values: r.Values()}
	switch r.Outcome() {
	case function.OutcomeDomainFailure:
		row.Status = StatusError
		row.Code = string(r.Code())
	case function.OutcomeFatalFailure:
		row.Status = StatusError
		row.Detail = r.Detail()
	}
	return row
}

// Rows переводит все конверты в строки ответа.
func Rows(results []function.Result) []MemberRow {
	rows := make([]MemberRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, RowFromResult(r))
	}
	return rows
}

// AnySuccess сообщает, есть ли среди конвертов успешный.
func AnySuccess(results []function.Result) bool {
	for _, r := range results {
		if r.IsSuccessful() {
			return true
		}
	}
	return false
}

// Targets выбирает участников по --member и --group.
// Пустой выбор дает error-ответ no_members.
func Targets(c *cluster.Cluster, cmd command.Command) ([]*cluster.Member, *Response) {
	members := c.Select(cmd.Lookup(command.OptionMember), cmd.Values(command.OptionGroup))
	if len(members) == 0 {
		resp := Failed("no_members", "No Members Found")
		return nil, &resp
	}
	return members, nil
}

// ExecutionRows переводит рассылку в строки, включая выбывших участников.
func ExecutionRows(exec cluster.Execution) []MemberRow {
	rows := Rows(exec.Results)
	for _, id := range exec.Failed {
		rows = append(rows, MemberRow{Member: id, Status: StatusError, Detail: "member stopped after a process failure"})
	}
	return rows
}

// Summarize строит ответ по рассылке: ok при хотя бы одном успехе,
// иначе error с общим доменным кодом или command_failed.
func Summarize(exec cluster.Execution) Response {
	resp := Response{Status: StatusOK, Data: ExecutionRows(exec)}
	if AnySuccess(exec.Results) {
		return resp
	}
	resp.Status = StatusError
	resp.ErrorCode = "command_failed"
	var code function.Code
	for i, r := range exec.Results {
		if !r.IsDomainFailure() || (i > 0 && r.Code() != code) {
			code = function.CodeNone
			break
		}
		code = r.Code()
		if resp.Message == "" {
			resp.Message = r.Message()
		}
	}
	if code != function.CodeNone && len(exec.Failed) == 0 {
		resp.ErrorCode = string(code)
	}
	return resp
}
