// Package campaign implements marketing campaign management.
//
// Campaigns are authored as liquid templates and sent to a recipient list
// through the notify package. Open and click rates are derived from
// recipient timestamps at read time and never stored on the campaign row.
package campaign
