package llm

// --- Page Extractor Prompts ---

const ExtractorSystemPrompt = "You are an expert in analyzing clinical pathways in medicine. Your task is to convert visual clinical pathway information into clear, structured text descriptions. Focus on accurately capturing treatment algorithms, decision points, and clinical workflows."

const PageAnalysisPrompt = `Given a clinical pathway document for a medical condition, convert the information into a clear, structured flowchart. Follow these steps:

1. Identify the key decision points in the clinical pathway:
   - Initial assessment criteria
   - Risk stratification methods
   - First-line treatment options
   - Second-line and subsequent treatments
   - Monitoring and follow-up protocols

2. Map the logical flow between decision points, including:
   - Conditional branches (if/then scenarios)
   - Treatment sequences
   - Assessment checkpoints
   - Progression pathways

3. Include critical clinical parameters:
   - Required testing (genetic, imaging, lab values)
   - Medication specifics and timing
   - Response evaluation criteria
   - Indications for alternative pathways

4. Preserve any special considerations:
   - Patient eligibility criteria
   - Symptom-based decision making
   - Multidisciplinary consultation requirements
   - Clinical trial options

5. For complex pathways, consider dividing the flowchart into logical sections (e.g., "Initial Assessment," "First-line Treatment," "Treatment for Progression") to maintain readability.

Produce the flowchart and include a brief legend explaining any specialized notation used. If you cannot create a sufficiently detailed visual representation, provide a text-based flowchart using indentation, bullets, and directional markers (→, ↓) to show the clinical pathway flow.

When critical details must be condensed, provide a "Clinical Notes" section following the flowchart that explains important nuances that couldn't be fully captured in the visual representation. Mark this section with [SUPPLEMENTAL DETAILS] to indicate these are elements that enhance the main flowchart.

If you believe any important clinical information might be lost or unclear in your representation, flag the specific sections with [DETAIL ALERT] and provide additional clarification.`

const PageSynthesisPrompt = `You've analyzed multiple pages of a clinical pathway document. Please provide a comprehensive summary of all the information you've extracted so far, integrating the data from all pages into a single comprehensive paragraph (200-250 words) capturing the essential elements of the pathway, including condition identification, risk stratification, treatment sequencing, monitoring approaches, and progression management. Focus on maintaining clinical accuracy while making the information accessible. Present the information in a logical flow that follows the clinical decision-making process, highlighting key decision points and treatment options without omitting critical details necessary for patient management.`

// --- Document Summarizer Prompts ---

const SummarizerSystemPrompt = "You are a clinical expert synthesizing medical pathway information. Your task is to create comprehensive, authoritative summaries of clinical pathways that would serve as definitive reference documents for healthcare providers. Organize information logically, emphasize key decision points, and ensure all critical diagnostic and treatment elements are included. Be thorough, precise, and clinically relevant."

const CompleteSummaryPrompt = `Based on all the information above, please provide a comprehensive, detailed summary of this entire clinical pathway. Include all key decision points, treatment options, diagnostic criteria, and clinical workflows. Organize the information in a clear, structured format that would be useful for clinicians. This should be a definitive reference summary of the entire pathway document.`

const ChunkSummaryPrompt = `The page analyses above cover one contiguous portion of a larger clinical pathway document. Summarize this portion thoroughly, preserving every decision point, diagnostic criterion, treatment option, and clinical workflow it contains. The result will later be merged with summaries of the remaining portions, so do not speculate about content outside these pages.`

const ChunkMergePrompt = `The sections above are partial summaries covering consecutive portions of one clinical pathway document. Merge them into a single comprehensive, detailed summary of the entire pathway. Include all key decision points, treatment options, diagnostic criteria, and clinical workflows. Organize the information in a clear, structured format that would be useful for clinicians. This should be a definitive reference summary of the entire pathway document.`

// --- Matching Condenser Prompts ---

const CondenserSystemPrompt = "You are a clinical pathway specialist creating concise summaries for patient matching. Your task is to identify and extract ONLY the key diagnostic elements, conditions, biomarkers, and treatments that would help determine if a patient should follow this specific pathway. Focus on concrete, specific details that would appear in patient records. Prioritize clarity and relevance for matching algorithms. Be precise about diagnostic criteria, disease classifications, and treatment indicators. Avoid general descriptions of the condition when possible."

const MatchingSummaryPrompt = `Create a condensed summary of this clinical pathway, around 400 words in total, that focuses ONLY on information useful for matching patients to this pathway.

Return a single JSON object with exactly these four string keys:
  - "diagnostics": key diagnostic tests required to determine eligibility, plus the specific medical conditions and diagnostic criteria
  - "staging": relevant biomarkers, staging, risk stratification, or classification systems
  - "treatments": essential treatments and medications mentioned
  - "exclusions": criteria that would exclude a patient from this pathway

The summary should allow a model to easily identify if a patient's medical record indicates they should follow this particular clinical pathway. Each value must be plain prose without headings or bullet points. The final output MUST be a single, valid JSON object. Do not include any text before or after the JSON object.`
