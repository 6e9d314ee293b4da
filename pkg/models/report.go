package models

// ConsistencyReport is the result of cross-validating an agent configuration
// against a message dataset. Warnings and recommendations never block a
// session; Errors is a reserved channel for hard-stop conditions.
type ConsistencyReport struct {
	AgentsCount            int      `json:"agents_count"`
	MessagesCount          int      `json:"messages_count"`
	UniqueAgentsInMessages int      `json:"unique_agents_in_messages"`
	UniqueToolsInMessages  int      `json:"unique_tools_in_messages"`
	Warnings               []string `json:"warnings"`
	Recommendations        []string `json:"recommendations"`
	Errors                 []string `json:"errors"`
}
