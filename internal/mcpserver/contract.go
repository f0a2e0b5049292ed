package mcpserver

// Guide explains the client lifecycle to LLM consumers so they call the
// tools in a valid order.
const Guide = `# Ansuz Word Cloud

Ansuz is a shared word cloud stored in one record on a node. Every connected
wallet may append words; the cloud and contributor list are rebuilt from the
record after each change.

## States

| state                  | meaning                                   | valid actions                     |
|------------------------|-------------------------------------------|-----------------------------------|
| disconnected           | no wallet identity yet                    | connect                           |
| connected/unknown      | first fetch in flight                     | wait, then get_word_cloud         |
| connected/absent       | the shared record was never initialized   | initialize_record                 |
| connected/present      | the record was fetched                    | submit_word, refresh              |
| connected/unavailable  | the node could not be reached             | refresh                           |

## Rules

1. Call ` + "`connect`" + ` first. A wallet that was trusted before connects
   without a prompt; otherwise the user must approve on the terminal.
2. ` + "`initialize_record`" + ` only works in connected/absent. Anywhere else it is
   rejected and nothing is sent to the node.
3. ` + "`submit_word`" + ` rejects empty words. Each accepted word appears once
   in the cloud with weight 1; repeated words are separate entries unless the
   client runs with merge_repeats.
4. The current state is always available at ` + "`ansuz://state`" + `.
`
