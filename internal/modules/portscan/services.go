package portscan

// wellKnown maps common ports to their conventional service names, the
// same compact table a getservbyport lookup would cover for this sweep.
var wellKnown = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "smtps",
	587:   "submission",
	631:   "ipp",
	873:   "rsync",
	993:   "imaps",
	995:   "pop3s",
	1433:  "ms-sql-s",
	1521:  "oracle",
	1723:  "pptp",
	2049:  "nfs",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5432:  "postgresql",
	5900:  "vnc",
	5984:  "couchdb",
	6379:  "redis",
	8000:  "http-alt",
	8080:  "http-proxy",
	8443:  "https-alt",
	9200:  "elasticsearch",
	11211: "memcached",
	27017: "mongodb",
}

func serviceName(port int) string {
	if name, ok := wellKnown[port]; ok {
		return name
	}
	return "unknown"
}
