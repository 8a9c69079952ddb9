package momo

// Kind identifies the shape of a recognized Mobile Money notification.
type Kind string

const (
	KindTransferOut Kind = "transfer_out"
	KindTransferIn  Kind = "transfer_in"
	KindBundle      Kind = "bundle"
	KindBillPayment Kind = "bill_payment"
)

// Outflow reports whether messages of this kind take money out of the wallet.
func (k Kind) Outflow() bool {
	return k != KindTransferIn
}

// Message is a parsed notification. It is implemented only by the variants
// in this package, so a type switch over them is exhaustive.
type Message interface {
	Kind() Kind
	Fields() Fields
	isMessage()
}

// Fields is the flat view shared by every message kind. Optional values
// that were not present in the text are nil.
type Fields struct {
	Kind    Kind
	Amount  int64
	Fees    int64
	Balance *int64
	// Recipient is the counterparty: recipient, sender or beneficiary.
	Recipient *string
	TID       *string
}

// Signed returns the ledger delta of the message: inflows are positive,
// outflows are negative and include fees.
func (f Fields) Signed() int64 {
	if f.Kind.Outflow() {
		return -(f.Amount + f.Fees)
	}
	return f.Amount
}

type TransferOut struct {
	Amount    int64
	Fees      int64
	Balance   *int64
	Recipient *string
	TID       *string
}

type TransferIn struct {
	Amount  int64
	Balance *int64
	Sender  *string
	TID     *string
}

type Bundle struct {
	Amount  int64
	Fees    int64
	Balance *int64
	TID     *string
}

type BillPayment struct {
	Amount      int64
	Fees        int64
	Balance     *int64
	Beneficiary *string
	TID         *string
}

func (TransferOut) Kind() Kind { return KindTransferOut }
func (TransferIn) Kind() Kind  { return KindTransferIn }
func (Bundle) Kind() Kind      { return KindBundle }
func (BillPayment) Kind() Kind { return KindBillPayment }

func (TransferOut) isMessage() {}
func (TransferIn) isMessage()  {}
func (Bundle) isMessage()      {}
func (BillPayment) isMessage() {}

func (m TransferOut) Fields() Fields {
	return Fields{Kind: KindTransferOut, Amount: m.Amount, Fees: m.Fees, Balance: m.Balance, Recipient: m.Recipient, TID: m.TID}
}

func (m TransferIn) Fields() Fields {
	return Fields{Kind: KindTransferIn, Amount: m.Amount, Balance: m.Balance, Recipient: m.Sender, TID: m.TID}
}

func (m Bundle) Fields() Fields {
	return Fields{Kind: KindBundle, Amount: m.Amount, Fees: m.Fees, Balance: m.Balance, TID: m.TID}
}

func (m BillPayment) Fields() Fields {
	return Fields{Kind: KindBillPayment, Amount: m.Amount, Fees: m.Fees, Balance: m.Balance, Recipient: m.Beneficiary, TID: m.TID}
}
