package finance

import "fmt"

// Money is a signed currency amount in the smallest unit. Positive values are
// costs paid by a company, negative values are income or refunds.
type Money int64

// Expenditure is a ledger bucket used when settling a command's cost.
type Expenditure uint8

const (
	ExpConstruction Expenditure = iota
	ExpVehiclePurchases
	ExpVehicleRunningCosts
	ExpTrainIncome
	ExpRoadVehicleIncome
	ExpLoanInterest
	ExpMiscellaneous
	ExpenditureCount
)

var expenditureNames = [ExpenditureCount]string{
	"construction",
	"vehicle_purchases",
	"vehicle_running_costs",
	"train_income",
	"road_vehicle_income",
	"loan_interest",
	"miscellaneous",
}

func (e Expenditure) String() string {
	if e < ExpenditureCount {
		return expenditureNames[e]
	}
	return fmt.Sprintf("Expenditure(%d)", uint8(e))
}

// ParseExpenditure maps a data-file name to its category.
func ParseExpenditure(s string) (Expenditure, error) {
	for i, n := range expenditureNames {
		if n == s {
			return Expenditure(i), nil
		}
	}
	return 0, fmt.Errorf("unknown expenditure %q", s)
}
