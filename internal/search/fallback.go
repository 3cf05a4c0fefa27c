package search

// fallbackDocs holds static substitute text for the small set of sources
// whose archives intermittently reject scrapes. The text is a condensed
// excerpt of the most commonly cited provisions, good enough to keep a
// query from coming back empty; it is never cached as a fetched document.
var fallbackDocs = map[string]string{
	"frcrmp": `Rule 29. Motion for a Judgment of Acquittal.
After the government closes its evidence or after the close of all the
evidence, the court on the defendant's motion must enter a judgment of
acquittal of any offense for which the evidence is insufficient to sustain
a conviction.

Rule 30. Jury Instructions.
Any party may request in writing that the court instruct the jury on the
law as specified in the request. The request must be made at the close of
the evidence or at any earlier time that the court reasonably sets.

Rule 33. New Trial.
Upon the defendant's motion, the court may vacate any judgment and grant a
new trial if the interest of justice so requires.`,

	"frap": `Rule 3. Appeal as of Right - How Taken.
An appeal permitted by law as of right from a district court to a court of
appeals may be taken only by filing a notice of appeal with the district
clerk within the time allowed by Rule 4.

Rule 4. Appeal as of Right - When Taken.
In a criminal case, a defendant's notice of appeal must be filed in the
district court within 14 days after the entry of the judgment or order
being appealed.`,

	"frcp": `Rule 26. Duty to Disclose; General Provisions Governing Discovery.
Parties may obtain discovery regarding any nonprivileged matter that is
relevant to any party's claim or defense and proportional to the needs of
the case.

Rule 30. Depositions by Oral Examination.
A party may, by oral questions, depose any person, including a party,
without leave of court except as provided in Rule 30(a)(2).

Rule 56. Summary Judgment.
The court shall grant summary judgment if the movant shows that there is
no genuine dispute as to any material fact.`,
}

// fallbackText returns the static substitute document for a source ID.
func fallbackText(sourceID string) (string, bool) {
	text, ok := fallbackDocs[sourceID]
	return text, ok
}
