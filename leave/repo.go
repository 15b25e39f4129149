/*
repo.go - Repository contracts for reference data

PURPOSE:
  The engine reads employees, leave types and policies through these
  interfaces. store/sqlite implements them for production and
  store/memory for tests. The engine never writes employee data.
*/
package leave

import "context"

// EmployeeStore reads employee profiles.
type EmployeeStore interface {
	// Employee returns a profile, or ErrNotFound.
	Employee(ctx context.Context, id EmployeeID) (*EmployeeProfile, error)

	// ActiveEmployees returns every employee the batch jobs should
	// process.
	ActiveEmployees(ctx context.Context) ([]EmployeeProfile, error)
}

// CatalogStore reads leave types and policies.
type CatalogStore interface {
	// LeaveType returns a type, or ErrNotFound.
	LeaveType(ctx context.Context, id LeaveTypeID) (*LeaveType, error)

	// ActiveLeaveTypes returns all active types.
	ActiveLeaveTypes(ctx context.Context) ([]LeaveType, error)

	// ActivePolicy returns the active policy of a leave type, or
	// ErrNotFound when the type is unmanaged.
	ActivePolicy(ctx context.Context, leaveTypeID LeaveTypeID) (*LeavePolicy, error)
}
