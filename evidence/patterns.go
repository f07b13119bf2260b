package evidence

// Built-in absence lexicon: Czech (in normalized, diacritic-free
// spelling) plus English terms for vacation, sick leave, parental
// leave, out-of-office and date-range phrasing. Order matters: an
// earlier pattern claims the canonical spelling of a duplicate hit.
var defaultPatterns = []string{
	// dovolená
	`\bdovolen[aeouyi][a-z]*`,
	`\bdov\b`,
	`\bdov\.`,
	`\bcerp[aei][a-z]*\s+dovolen`,
	`\bzaslouzen[aeouyi]*\s+dovolen`,
	`\bradn[aeouyi]*\s+dovolen`,

	// prázdniny
	`\bprazdnin[aeouyi]*`,
	`\bprazd\.`,

	// volno
	`\bvoln[aeouyi][a-z]*`,
	`\bvoln\b`,

	// nepřítomnost
	`\bnepritom[a-z]*`,
	`\bneprit\b`,
	`\bneprit\.`,

	// mimo kancelář
	`\bmimo\s+kancela[rz][a-z]*`,
	`\bmimo\s+k\b`,
	`\bmimo\s+k\.`,
	`\bmimo\s+provoz`,

	// out of office
	`\bo+\s*o+\s*o+`,
	`\bout\s+of\s+office`,
	`\bout\s+off`,

	// nemocenská / sick leave
	`\bnemocensk[aeouyi]*`,
	`\bnemoc\b`,
	`\bnemoc\.`,
	`\bnem\b`,
	`\bnem\.`,
	`\bpn\b`,
	`\bp\.?\s*n\.`,
	`\bpracovn[aeouyi]*\s+neschopn`,
	`\bneschopenk[aeouyi]`,

	// zdravotní
	`\bzdravotn[aeouyi][a-z]*`,
	`\bzdr\.`,
	`\bzdr\s+voln`,
	`\bzdr\s+duvod`,

	// absence
	`\babsen[ct][a-z]*`,
	`\babs\b`,
	`\babs\.`,

	// nedostupný
	`\bnedostupn[aeouyi]*`,
	`\bnedost\b`,
	`\bnedost\.`,
	`\bne\s+budu\s+dostupn`,

	// rodičovská / mateřská / otcovská
	`\brodicovsk[aeouyi]*`,
	`\brd\b`,
	`\brd\.`,
	`\br\.?\s*d\.`,
	`\bmatersk[aeouyi]*`,
	`\bmat\b`,
	`\bmat\.`,
	`\botcovsk[aeouyi]*`,
	`\bot\b`,
	`\bot\.`,

	// návrat / vrátím se
	`\bvrat[i][a-z]*\s+se`,
	`\bzpet\s+(od|az|do|v)`,
	`\bnavrat`,
	`\bbudu\s+zpet`,
	`\bbudu\s+zpatky`,
	`\bzpat(ky|ecky)`,

	// k dispozici
	`\bk\s+dispozici`,
	`\bdispozic[iei]`,
	`\bne\s+budu\s+k\s+zastiz`,
	`\bk\s+zastiz`,

	// užívám si / odpočívám
	`\buziv[aei][a-z]*`,
	`\bbav[i][a-z]*\s+se`,
	`\brelax`,
	`\bodpociv[aei]`,

	// english terms
	`\bvacation`,
	`\bholiday`,
	`\bholidays`,
	`\bsick\s+leave`,
	`\bsick\s+day`,
	`\bsickday`,
	`\btime\s+off`,
	`\bpto\b`,
	`\bleave\b`,
	`\bunavailable`,
	`\baway`,
	`\boff\s+work`,
	`\boff\s+duty`,
	`\bautoreply`,
	`\bauto\s+reply`,
	`\bautomatic\s+reply`,

	// specific phrases
	`\bv\s+dobe\s+me\s+nepritom`,
	`\bpo\s+dobu\s+me\s+nepritom`,
	`\bbehem\s+me\s+nepritom`,
	`\bodpov[i][a-z]*\s+az\s+po`,
	`\bnemonitor`,
	`\bne\s+check`,
	`\bomezen[aeouyi]*\s+prist`,
	`\blimited\s+access`,
	`\bno\s+access`,
	`\bno\s+email`,

	// date-range phrasing
	`\bod\s+\d+\.\d+`,
	`\bdo\s+\d+\.\d+`,
	`\baz\s+do\s+\d+`,
	`\bvrat[i][a-z]*\s+\d+\.`,
}
