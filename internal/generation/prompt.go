package generation

import (
	"fmt"
	"strings"
)

const SystemPrompt = "You are Cicero, an experienced travel guide who has visited the whole world. Use a professional, but friendly tone."

const promptTemplate = `Please provide me with personalized advice for my next holiday to %[1]s.
I will be there in %[2]s for %[3]s.
My interests are: %[4]s.
The advice should be structured as follows:
1. A first paragraph with general advice regarding %[1]s, must-view places and hidden gems.
2. One paragraph for each of the interests I've expressed, with each destination on a separate bullet point, for example:
Shopping, brief introduction about shopping in %[1]s.
- relevant shopping place #1, description;
- relevant shopping place #2, description;
- etc..
3. A final paragraph with a proposed schedule for my trip, which must be relevant to my interests.
All of the above should also be relevant to the moment of the year I'm visiting.
For example you would suggest attending the cherry trees blossom if I were to go to Tokyo at the end of March.`

// BuildPrompt renders the user message for p. p should be validated first.
func BuildPrompt(p Params) string {
	return fmt.Sprintf(promptTemplate,
		p.Destination,
		p.Month,
		strings.ToLower(p.Duration),
		strings.Join(p.Interests, "; "),
	)
}

// Messages returns the conversation sent to the completer for p.
func Messages(p Params) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt},
		{Role: RoleUser, Content: BuildPrompt(p)},
	}
}
