package command

// Ключевые слова команд.
const (
	ListDeployed         = "list deployed"
	DestroyRegion        = "destroy region"
	ListDurableCQs       = "list durable-cqs"
	CountDurableCQEvents = "show subscription-queue-size"
	CloseDurableClient   = "close durable-client"
	CloseDurableCQ       = "close durable-cq"
	ListMembers          = "list members"
	DescribeMember       = "describe member"
)

// Имена опций.
const (
	OptionMember          = "member"
	OptionGroup           = "group"
	OptionName            = "name"
	OptionDurableClientID = "durable-client-id"
	OptionDurableCQName   = "durable-cq-name"
)
