package adapter

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// ClassifyCommon classifies errors any driver can produce: pool and network
// failures, drivers exposing SQLState(), and well-known constraint messages.
func ClassifyCommon(err error) core.ErrorInfo {
	var info core.ErrorInfo
	if err == nil {
		return info
	}

	if IsConnectivity(err) {
		info.Connectivity = true
	}

	var st interface{ SQLState() string }
	if errors.As(err, &st) {
		info.Code = st.SQLState()
		if strings.HasPrefix(info.Code, "08") {
			info.Connectivity = true
		}
		info.Constraint = ConstraintFromSQLState(info.Code)
	}

	if info.Constraint == core.ConstraintNone {
		info.Constraint = core.ConstraintFromMessage(err.Error())
	}
	return info
}

// IsConnectivity reports whether err means the connection is unusable.
func IsConnectivity(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ConstraintFromSQLState maps SQLSTATE class 23 codes to a constraint kind.
func ConstraintFromSQLState(code string) core.ConstraintKind {
	switch code {
	case "23505":
		return core.ConstraintUnique
	case "23503":
		return core.ConstraintForeignKey
	case "23514":
		return core.ConstraintCheck
	case "23502":
		return core.ConstraintNotNull
	default:
		return core.ConstraintNone
	}
}
