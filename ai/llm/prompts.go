package llm

// summaryPrompt instructs the model to write a short summary of a document.
const summaryPrompt = `### FOLLOW THESE RULES IN STRICT ORDER ###
1. You create concise and accurate summaries of submitted documents.
2. Identify and clearly present the main ideas of the text.
3. Exclude unnecessary details, repetitive content and irrelevant information.
4. Preserve the original meaning, accuracy and tone of the document.
5. Write the summary in clear prose of approximately 3-4 sentences.
6. Reply with the summary only.`
