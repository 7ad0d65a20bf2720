package ir

type (
	// Core entities.
	FuncID     uint32
	StmtID     uint32
	ExprID     uint32
	TypeID     uint32
	ContractID uint32
	// Sub-entities.
	PayloadID uint32
)

const (
	NoFuncID     FuncID     = 0
	NoStmtID     StmtID     = 0
	NoExprID     ExprID     = 0
	NoTypeID     TypeID     = 0
	NoContractID ContractID = 0
	NoPayloadID  PayloadID  = 0
)

func (id FuncID) IsValid() bool     { return id != NoFuncID }
func (id StmtID) IsValid() bool     { return id != NoStmtID }
func (id ExprID) IsValid() bool     { return id != NoExprID }
func (id TypeID) IsValid() bool     { return id != NoTypeID }
func (id ContractID) IsValid() bool { return id != NoContractID }
